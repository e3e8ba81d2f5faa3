//go:build !darwin

package inference

// ImportLayers needs the Metal backend.
func ImportLayers(string) ([]Layer, int, error) {
	return nil, 0, ErrLayersUnsupported
}
