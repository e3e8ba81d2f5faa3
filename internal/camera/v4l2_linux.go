//go:build linux

package camera

import (
	"context"
	"log/slog"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/logging"
)

// fourcc MJPG
const pixelFormatMJPEG webcam.PixelFormat = 0x47504A4D

// V4L2 reads MJPEG frames straight from a Linux video device
type V4L2 struct {
	buf    *camBuffer
	width  int
	height int
	out    *canvas.Canvas
	logger *slog.Logger
}

// OpenV4L2 opens cfg.Device and starts streaming MJPEG at the closest
// supported resolution.
func OpenV4L2(cfg Config) (*V4L2, error) {
	device := cfg.Device
	if device == "" {
		device = "/dev/video0"
	}
	logger := logging.OrNop(cfg.Logger)

	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "can not open device "+device)
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		cam.Close()
		return nil, errors.Errorf("device %s does not support MJPEG", device)
	}
	_, w, h, err := cam.SetImageFormat(pixelFormatMJPEG, uint32(cfg.Width), uint32(cfg.Height))
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "can not set image format")
	}

	buf := newCamBuffer(func(err error) bool {
		_, ok := err.(*webcam.Timeout)
		return ok
	})
	buf.onTimeout = func(error) { logger.Debug("frame wait timed out", "device", device) }
	buf.start(cam)

	logger.Info("camera opened", "device", device, "width", w, "height", h)
	return &V4L2{buf: buf, width: int(w), height: int(h), logger: logger}, nil
}

// Read waits for the newest frame and decodes it. The canvas is reused by
// the next Read.
func (v *V4L2) Read(ctx context.Context) (*canvas.Canvas, error) {
	frame, err := v.buf.next(ctx)
	if err != nil {
		return nil, err
	}
	out, err := decodeMJPEG(frame, v.out)
	if err != nil {
		return nil, err
	}
	v.out = out
	return out, nil
}

// Width returns the negotiated frame width
func (v *V4L2) Width() int { return v.width }

// Height returns the negotiated frame height
func (v *V4L2) Height() int { return v.height }

// Close stops streaming and waits for the device to be released
func (v *V4L2) Close() error {
	v.buf.stop()
	<-v.buf.done
	return v.buf.err
}
