package inference

import (
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/atomic"
)

// live counts tensors created through this package and not yet released.
var live atomic.Int64

func track() { live.Inc() }

func untrack() {
	if live.Dec() < 0 {
		live.Store(0)
	}
}

// LiveTensors returns the number of tensors currently allocated
func LiveTensors() int { return int(live.Load()) }

// TensorCounter reports LiveTensors as a resource count for memory pressure
// tracking.
type TensorCounter struct{}

// LiveResources returns the live tensor count
func (TensorCounter) LiveResources() int { return LiveTensors() }

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, err
	}
	track()
	return t, nil
}

// CreateEmptyTensor creates a zeroed tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	return CreateTensor(shape, make([]T, size))
}

// Release destroys tensors created by CreateTensor or CreateEmptyTensor.
// Nil entries are skipped.
func Release[T ort.TensorData](tensors ...*ort.Tensor[T]) {
	for _, t := range tensors {
		if t == nil {
			continue
		}
		t.Destroy()
		untrack()
	}
}
