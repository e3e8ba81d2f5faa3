//go:build darwin

package inference

import (
	"fmt"

	"github.com/tsawler/go-metal/checkpoints"
)

// ImportLayers loads the model with the go-metal ONNX importer and lists its
// layers. Models using operators go-metal lacks fail here while still
// running under ONNX Runtime.
func ImportLayers(path string) ([]Layer, int, error) {
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(path)
	if err != nil {
		return nil, 0, fmt.Errorf("go-metal import failed: %w", err)
	}

	layers := make([]Layer, len(checkpoint.ModelSpec.Layers))
	for i, l := range checkpoint.ModelSpec.Layers {
		layers[i] = Layer{Name: l.Name, Type: fmt.Sprint(l.Type)}
	}
	return layers, len(checkpoint.Weights), nil
}
