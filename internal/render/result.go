// Package render holds the contract shared by everything that draws a face
// onto a frame.
package render

import (
	"github.com/dudu/facefx/internal/canvas"
)

// Result is the outcome of rendering one face.
type Result int

const (
	// OK means the face was drawn, or there was legitimately nothing to draw.
	OK Result = iota
	// Degraded means drawing failed part way and the affected pixels were
	// left as they were.
	Degraded
	// FaceInvalid means the landmark set could not be used.
	FaceInvalid
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Degraded:
		return "degraded"
	case FaceInvalid:
		return "face-invalid"
	default:
		return "unknown"
	}
}

// Surface is the pixel target of a render call. *canvas.Canvas implements it.
type Surface interface {
	Width() int
	Height() int
	ReadRegion(r canvas.Region) ([]uint8, error)
	WriteRegion(r canvas.Region, buf []uint8) error
}

var _ Surface = (*canvas.Canvas)(nil)

// Counts tallies results over a frame.
type Counts struct {
	OK, Degraded, Invalid int
}

// Add records r.
func (c *Counts) Add(r Result) {
	switch r {
	case OK:
		c.OK++
	case Degraded:
		c.Degraded++
	case FaceInvalid:
		c.Invalid++
	}
}
