package detector

import "github.com/dudu/facefx/internal/landmark"

// Point represents a 2D point
type Point struct {
	X, Y float32
}

func (p Point) vec() landmark.Point {
	return landmark.Point{X: float64(p.X), Y: float64(p.Y)}
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point // index 0
	RightEye   Point // index 1
	Nose       Point // index 2
	LeftMouth  Point // index 3
	RightMouth Point // index 4
}

// Landmarks106 represents 106 facial landmark points from insightface
type Landmarks106 [106]Point

// Index ranges of the insightface 106-point layout
const (
	contourFirst, contourLast = 0, 32
	eyeAFirst, eyeALast       = 33, 42
	eyeBFirst, eyeBLast       = 87, 96
	mouthFirst, mouthLast     = 52, 71
	mouthCornerA              = 52
	mouthCornerB              = 61
	noseTip106                = 86
	chin106                   = 0
)

// BoundingBox computes tight bounding box around all 106 points
func (l *Landmarks106) BoundingBox() BoundingBox {
	minX, minY := l[0].X, l[0].Y
	maxX, maxY := l[0].X, l[0].Y
	for i := 1; i < len(l); i++ {
		minX = min(minX, l[i].X)
		maxX = max(maxX, l[i].X)
		minY = min(minY, l[i].Y)
		maxY = max(maxY, l[i].Y)
	}
	return BoundingBox{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}

// Face represents a detected face
type Face struct {
	BoundingBox  BoundingBox
	Landmarks    Landmarks     // 5-point from SCRFD
	Landmarks106 *Landmarks106 // 106-point from 2d106det (optional)
	Score        float32
}

// Compact converts the face to the compact landmark vocabulary, preferring
// the dense landmarks when present.
func (f Face) Compact() landmark.Set {
	if f.Landmarks106 != nil {
		return f.Landmarks106.Compact()
	}
	return f.Landmarks.Layout().Set(landmark.Compact)
}
