// Package canvas provides the pixel surface that filters draw on.
package canvas

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrOutOfBounds is returned when a region does not fit the canvas.
var ErrOutOfBounds = errors.New("region outside canvas")

// Region is an axis-aligned pixel rectangle.
type Region struct {
	X, Y          int
	Width, Height int
}

// Empty reports whether r covers no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Canvas is an RGBA frame. Its dimensions are fixed for its lifetime.
type Canvas struct {
	img *image.RGBA
}

// New allocates a blank canvas.
func New(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// FromRGBA wraps img without copying. The canvas origin is img.Rect.Min.
func FromRGBA(img *image.RGBA) *Canvas {
	return &Canvas{img: img}
}

// FromImage copies any image into a new canvas with a zero origin.
func FromImage(src image.Image) *Canvas {
	b := src.Bounds()
	c := New(b.Dx(), b.Dy())
	draw.Draw(c.img, c.img.Rect, src, b.Min, draw.Src)
	return c
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.img.Rect.Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Bounds returns the full canvas as a region.
func (c *Canvas) Bounds() Region {
	return Region{Width: c.Width(), Height: c.Height()}
}

// RGBA exposes the underlying image for drawing libraries.
func (c *Canvas) RGBA() *image.RGBA { return c.img }

// ReadRegion copies the pixels of r into a new tightly packed RGBA buffer of
// r.Width*r.Height*4 bytes.
func (c *Canvas) ReadRegion(r Region) ([]uint8, error) {
	if err := c.check(r); err != nil {
		return nil, err
	}
	out := make([]uint8, r.Width*r.Height*4)
	row := r.Width * 4
	for y := 0; y < r.Height; y++ {
		off := c.offset(r.X, r.Y+y)
		copy(out[y*row:(y+1)*row], c.img.Pix[off:off+row])
	}
	return out, nil
}

// WriteRegion copies a tightly packed RGBA buffer back into r.
func (c *Canvas) WriteRegion(r Region, buf []uint8) error {
	if err := c.check(r); err != nil {
		return err
	}
	row := r.Width * 4
	if len(buf) < row*r.Height {
		return fmt.Errorf("buffer holds %d bytes, region needs %d", len(buf), row*r.Height)
	}
	for y := 0; y < r.Height; y++ {
		off := c.offset(r.X, r.Y+y)
		copy(c.img.Pix[off:off+row], buf[y*row:(y+1)*row])
	}
	return nil
}

func (c *Canvas) check(r Region) error {
	if r.Width < 0 || r.Height < 0 || r.X < 0 || r.Y < 0 ||
		r.X+r.Width > c.Width() || r.Y+r.Height > c.Height() {
		return fmt.Errorf("%w: %+v in %dx%d", ErrOutOfBounds, r, c.Width(), c.Height())
	}
	return nil
}

// offset returns the Pix index of canvas-relative pixel (x, y).
func (c *Canvas) offset(x, y int) int {
	return c.img.PixOffset(c.img.Rect.Min.X+x, c.img.Rect.Min.Y+y)
}
