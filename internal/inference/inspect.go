package inference

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrLayersUnsupported is returned by ImportLayers on platforms without a
// layer importer.
var ErrLayersUnsupported = errors.New("layer import not supported on this platform")

// TensorInfo describes one model input or output
type TensorInfo struct {
	Name       string
	Dimensions []int64
	DataType   string
}

// Layer is one entry of an imported layer graph
type Layer struct {
	Name string
	Type string
}

// ModelInfo summarises an ONNX model
type ModelInfo struct {
	Path    string
	Inputs  []TensorInfo
	Outputs []TensorInfo

	Producer    string
	Version     int64
	Domain      string
	Description string

	Layers  []Layer
	Weights int
	// LayerErr is why Layers is empty, if it is.
	LayerErr error
}

// Inspect reads model IO info and metadata through ONNX Runtime, then tries
// the layer importer. Initialize must have been called.
func Inspect(path string) (ModelInfo, error) {
	info := ModelInfo{Path: path}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return info, fmt.Errorf("failed to get model info: %w", err)
	}
	info.Inputs = tensorInfos(inputs)
	info.Outputs = tensorInfos(outputs)

	if md, err := ort.GetModelMetadata(path); err == nil {
		info.Producer, _ = md.GetProducerName()
		info.Version, _ = md.GetVersion()
		info.Domain, _ = md.GetDomain()
		info.Description, _ = md.GetDescription()
		md.Destroy()
	}

	info.Layers, info.Weights, info.LayerErr = ImportLayers(path)
	return info, nil
}

// OutputNames returns the output names in model order
func (m ModelInfo) OutputNames() []string {
	names := make([]string, len(m.Outputs))
	for i, o := range m.Outputs {
		names[i] = o.Name
	}
	return names
}

func tensorInfos(in []ort.InputOutputInfo) []TensorInfo {
	out := make([]TensorInfo, len(in))
	for i, v := range in {
		out[i] = TensorInfo{
			Name:       v.Name,
			Dimensions: append([]int64(nil), v.Dimensions...),
			DataType:   fmt.Sprint(v.DataType),
		}
	}
	return out
}
