package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/facefx/internal/canvas"
)

// ErrNoFrame is returned when the device delivers an empty frame
var ErrNoFrame = errors.New("camera returned no frame")

// Capture manages webcam capture through OpenCV
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int

	frame gocv.Mat
	rgba  gocv.Mat
	out   *canvas.Canvas
	mu    sync.Mutex
}

// NewCapture creates a new camera capture from device with default 720p resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 1280, 720)
}

// NewCaptureWithResolution creates a new camera capture with specified resolution
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	// Camera may not support requested resolution
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:    webcam,
		deviceID:  deviceID,
		targetFPS: targetFPS,
		width:     actualWidth,
		height:    actualHeight,
		frame:     gocv.NewMat(),
		rgba:      gocv.NewMat(),
	}, nil
}

// Read captures a frame. The canvas is reused by the next Read.
func (c *Capture) Read(ctx context.Context) (*canvas.Canvas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil, errors.New("camera closed")
	}
	if !c.webcam.Read(&c.frame) || c.frame.Empty() {
		return nil, ErrNoFrame
	}

	out, err := MatToCanvas(c.frame, &c.rgba, c.out)
	if err != nil {
		return nil, err
	}
	c.out = out
	return out, nil
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		c.frame.Close()
		c.rgba.Close()
		return err
	}
	return nil
}

// MatToCanvas converts a BGR Mat into dst, using scratch for the colour
// conversion. dst is reallocated when nil or of a different size.
func MatToCanvas(bgr gocv.Mat, scratch *gocv.Mat, dst *canvas.Canvas) (*canvas.Canvas, error) {
	gocv.CvtColor(bgr, scratch, gocv.ColorBGRToRGBA)
	w, h := scratch.Cols(), scratch.Rows()
	if dst == nil || dst.Width() != w || dst.Height() != h {
		dst = canvas.New(w, h)
	}
	data, err := scratch.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", err)
	}
	copy(dst.RGBA().Pix, data)
	return dst, nil
}

// CanvasToMat converts a canvas into a new BGR Mat the caller must close.
func CanvasToMat(c *canvas.Canvas) (gocv.Mat, error) {
	img := c.RGBA()
	if img.Stride != img.Rect.Dx()*4 || img.Rect.Min != (image.Point{}) {
		c = copyInto(nil, img)
		img = c.RGBA()
	}
	rgba, err := gocv.NewMatFromBytes(img.Rect.Dy(), img.Rect.Dx(), gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to wrap canvas: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}
