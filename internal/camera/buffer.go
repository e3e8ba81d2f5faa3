package camera

import (
	"bytes"
	"context"
	"image/jpeg"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/pipeline"
)

// device is the subset of a V4L2 webcam the buffer drives
type device interface {
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	Close() error
}

// camBuffer streams frames on its own goroutine and keeps only the newest
// one, so a slow consumer never sees stale frames.
type camBuffer struct {
	frame     chan []byte
	done      chan struct{}
	err       error
	stopped   atomic.Bool
	isTimeout func(error) bool
	onTimeout func(error)
}

func newCamBuffer(isTimeout func(error) bool) *camBuffer {
	return &camBuffer{
		frame:     make(chan []byte, 1),
		done:      make(chan struct{}),
		isTimeout: isTimeout,
		onTimeout: func(error) {},
	}
}

func (c *camBuffer) start(dev device) {
	go func() {
		c.err = c.run(dev)
		close(c.done)
	}()
}

func (c *camBuffer) run(dev device) error {
	defer dev.Close()

	if err := dev.StartStreaming(); err != nil {
		return errors.Wrap(err, "can not start streaming")
	}

	for !c.stopped.Load() {
		err := dev.WaitForFrame(1)
		switch {
		case err == nil:
		case c.isTimeout(err):
			c.onTimeout(err)
			continue
		default:
			return errors.Wrap(err, "frame wait failed")
		}
		if c.stopped.Load() {
			break
		}

		frame, err := dev.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "read frame failed")
		}
		if len(frame) == 0 {
			continue
		}

		// The driver reuses its buffer.
		own := append([]byte(nil), frame...)
		select {
		case c.frame <- own:
		default:
			// drop the stale frame in favour of this one
			select {
			case <-c.frame:
			default:
			}
			c.frame <- own
		}
	}
	return nil
}

// next waits for a frame. It returns pipeline.ErrEndOfStream once the
// stream ended cleanly.
func (c *camBuffer) next(ctx context.Context) ([]byte, error) {
	// a buffered frame wins over the end of stream
	select {
	case f := <-c.frame:
		return f, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-c.frame:
		return f, nil
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		return nil, pipeline.ErrEndOfStream
	}
}

func (c *camBuffer) stop() {
	c.stopped.Store(true)
}

// decodeMJPEG decodes one MJPEG frame into dst
func decodeMJPEG(frame []byte, dst *canvas.Canvas) (*canvas.Canvas, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.Wrap(err, "can not decode frame")
	}
	return copyInto(dst, img), nil
}
