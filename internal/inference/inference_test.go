package inference

import (
	"errors"
	"runtime"
	"testing"
)

func TestLiveTensorCounting(t *testing.T) {
	live.Store(0)
	t.Cleanup(func() { live.Store(0) })

	track()
	track()
	track()
	if got := LiveTensors(); got != 3 {
		t.Fatalf("LiveTensors() = %d; want 3", got)
	}
	if got := (TensorCounter{}).LiveResources(); got != 3 {
		t.Errorf("TensorCounter.LiveResources() = %d; want 3", got)
	}

	untrack()
	untrack()
	untrack()
	untrack() // more releases than allocations must not go negative
	if got := LiveTensors(); got != 0 {
		t.Errorf("LiveTensors() after release = %d; want 0", got)
	}
}

func TestReleaseSkipsNil(t *testing.T) {
	live.Store(2)
	t.Cleanup(func() { live.Store(0) })

	Release[float32](nil, nil)
	if got := LiveTensors(); got != 2 {
		t.Errorf("LiveTensors() = %d; want 2 after releasing nils", got)
	}
}

func TestNewSessionRequiresInitialize(t *testing.T) {
	if Initialized() {
		t.Skip("runtime already initialized")
	}
	if _, err := NewSession("model.onnx", []string{"in"}, []string{"out"}, SessionOptions{}); err == nil {
		t.Error("NewSession before Initialize succeeded")
	}
}

func TestShutdownWithoutInitialize(t *testing.T) {
	if Initialized() {
		t.Skip("runtime already initialized")
	}
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown() = %v; want nil", err)
	}
}

func TestDefaultLibraryPath(t *testing.T) {
	if DefaultLibraryPath() == "" {
		t.Error("DefaultLibraryPath() is empty")
	}
}

func TestImportLayersUnsupportedOffDarwin(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("layer importer available")
	}
	_, _, err := ImportLayers("model.onnx")
	if !errors.Is(err, ErrLayersUnsupported) {
		t.Errorf("ImportLayers() error = %v; want ErrLayersUnsupported", err)
	}
}

func TestOutputNames(t *testing.T) {
	m := ModelInfo{Outputs: []TensorInfo{{Name: "score_8"}, {Name: "bbox_8"}}}
	got := m.OutputNames()
	if len(got) != 2 || got[0] != "score_8" || got[1] != "bbox_8" {
		t.Errorf("OutputNames() = %v", got)
	}
}
