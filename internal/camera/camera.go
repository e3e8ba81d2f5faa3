package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/dudu/facefx/internal/canvas"
)

// Backend selects the capture implementation
type Backend string

const (
	BackendGoCV Backend = "gocv" // OpenCV VideoCapture
	BackendV4L2 Backend = "v4l2" // Linux V4L2 MJPEG stream
)

// Config describes the camera to open
type Config struct {
	Backend Backend
	Index   int    // gocv device index
	Device  string // v4l2 device path
	Width   int
	Height  int
	FPS     int
	Logger  *slog.Logger
}

// Source is an open camera. Read blocks until a frame arrives or ctx ends.
type Source interface {
	Read(ctx context.Context) (*canvas.Canvas, error)
	Width() int
	Height() int
	Close() error
}

// Open starts the configured backend
func Open(cfg Config) (Source, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 1280, 720
	}
	if cfg.FPS == 0 {
		cfg.FPS = 30
	}

	switch cfg.Backend {
	case BackendGoCV, "":
		c, err := NewCaptureWithResolution(cfg.Index, cfg.FPS, cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendV4L2:
		c, err := OpenV4L2(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q", cfg.Backend)
	}
}

// copyInto draws src into dst, reallocating dst when the size changed.
func copyInto(dst *canvas.Canvas, src image.Image) *canvas.Canvas {
	b := src.Bounds()
	if dst == nil || dst.Width() != b.Dx() || dst.Height() != b.Dy() {
		dst = canvas.New(b.Dx(), b.Dy())
	}
	draw.Draw(dst.RGBA(), dst.RGBA().Rect, src, b.Min, draw.Src)
	return dst
}
