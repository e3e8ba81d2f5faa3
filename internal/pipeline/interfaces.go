package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/landmark"
)

// ErrEndOfStream is returned by a FrameSource that has no more frames. Run
// treats it as a normal stop.
var ErrEndOfStream = errors.New("end of stream")

// Detector finds face landmarks in a frame
type Detector interface {
	Detect(ctx context.Context, img image.Image, minConfidence float64) (landmark.Snapshot, error)
	Close() error
}

// ResourceCounter reports the number of live native resources (tensors,
// Mats) for memory pressure tracking
type ResourceCounter interface {
	LiveResources() int
}

// ResourceCounterFunc adapts a function to ResourceCounter
type ResourceCounterFunc func() int

// LiveResources calls f
func (f ResourceCounterFunc) LiveResources() int { return f() }

// FrameSource produces frames for Run. The returned canvas is owned by the
// loop until the next Read.
type FrameSource interface {
	Read(ctx context.Context) (*canvas.Canvas, error)
}

// FrameSink consumes rendered frames
type FrameSink interface {
	Show(frame *canvas.Canvas, report TickReport) error
}
