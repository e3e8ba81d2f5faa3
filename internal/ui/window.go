package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/facefx/internal/camera"
	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/pipeline"
)

var overlayColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Window manages the preview display
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64

	// OnQuit runs when q or ESC is pressed
	OnQuit func()
	// Overlay draws the stats lines when set
	Overlay bool
}

// NewWindow creates a new preview window
func NewWindow(name string) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(1280, 720)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
		Overlay:   true,
	}
}

// Show displays a rendered frame with its stats and pumps window events
func (w *Window) Show(frame *canvas.Canvas, report pipeline.TickReport) error {
	w.tick(time.Now())

	mat, err := camera.CanvasToMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	if w.Overlay {
		for i, line := range OverlayLines(w.fps, report) {
			gocv.PutText(&mat, line, image.Pt(10, 30+i*26),
				gocv.FontHersheyPlain, 1.5, overlayColor, 2)
		}
	}
	w.window.IMShow(mat)

	// WaitKey must be called to process window events on macOS
	key := w.window.WaitKey(1)
	if (key == 'q' || key == 27) && w.OnQuit != nil { // 'q' or ESC
		w.OnQuit()
	}
	return nil
}

// tick updates the FPS counter once per second
func (w *Window) tick(now time.Time) {
	w.frameCount++
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}

// OverlayLines formats the stats drawn over the preview
func OverlayLines(fps float64, r pipeline.TickReport) []string {
	mode := "interp"
	if r.Detected {
		mode = "detect"
	}
	lines := []string{
		fmt.Sprintf("FPS: %.1f  tier: %s  skip: %d", fps, r.Quality.Tier, r.SkipInterval),
		fmt.Sprintf("faces: %d  %s  D:%.0fms R:%.0fms T:%.0fms", r.Faces, mode,
			ms(r.Timing.Detection), ms(r.Timing.Render), ms(r.Timing.Total)),
	}
	if r.MemoryLevel > 0 {
		lines = append(lines, fmt.Sprintf("memory pressure: %d", r.MemoryLevel))
	}
	if r.DetectErr != nil {
		lines = append(lines, "detector error")
	}
	return lines
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
