package inference

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facefx/internal/logging"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// DefaultLibraryPath returns the usual onnxruntime shared library location
// for the running OS.
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/opt/homebrew/lib/libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "/usr/local/lib/libonnxruntime.so"
	}
}

// Initialize sets up ONNX Runtime environment (call once at startup). An
// empty libraryPath uses DefaultLibraryPath.
func Initialize(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}
	if libraryPath == "" {
		libraryPath = DefaultLibraryPath()
	}

	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime from %s: %w", libraryPath, err)
	}

	initialized = true
	return nil
}

// Initialized reports whether Initialize succeeded
func Initialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// Shutdown cleans up ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// SessionOptions tunes a session
type SessionOptions struct {
	// CoreML appends the CoreML execution provider on darwin
	CoreML bool
	// IntraOpThreads limits the intra-op thread pool. 0 keeps the runtime default.
	IntraOpThreads int
	Logger         *slog.Logger
}

// Session wraps an ONNX Runtime inference session
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession creates a new inference session from an ONNX model
func NewSession(modelPath string, inputNames, outputNames []string, opts SessionOptions) (*Session, error) {
	if !Initialized() {
		return nil, fmt.Errorf("ONNX Runtime not initialized, call Initialize() first")
	}
	logger := logging.OrNop(opts.Logger)

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	provider := "cpu"
	if opts.CoreML && runtime.GOOS == "darwin" {
		// Flag 0 = default settings, use Neural Engine + GPU
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			logger.Warn("CoreML unavailable, using CPU", "model", modelPath, "error", err)
		} else {
			provider = "coreml"
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}
	logger.Info("model loaded", "model", modelPath, "provider", provider)

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// ModelPath returns the model the session was created from
func (s *Session) ModelPath() string { return s.modelPath }

// Run executes inference with the given inputs
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	return s.session.Run(inputs, outputs)
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}
