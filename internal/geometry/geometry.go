// Package geometry derives face-relative measurements from landmark sets.
//
// All overlay sizes are expressed as fractions of face width so that they
// scale with the subject's distance from the camera.
package geometry

import (
	"math"

	"github.com/dudu/facefx/internal/landmark"
)

// Points holds the named reference points of one face.
type Points struct {
	NoseTip  landmark.Point
	Forehead landmark.Point

	LeftEye       landmark.Point // midpoint of the left eye corners
	RightEye      landmark.Point // midpoint of the right eye corners
	LeftEyeOuter  landmark.Point
	LeftEyeInner  landmark.Point
	RightEyeInner landmark.Point
	RightEyeOuter landmark.Point

	MouthLeft  landmark.Point
	MouthRight landmark.Point
	UpperLip   landmark.Point
	LowerLip   landmark.Point

	LeftCheek  landmark.Point
	RightCheek landmark.Point
	Chin       landmark.Point
}

// Dimensions are the normalisation basis for sizes and positions.
type Dimensions struct {
	Width     float64
	Height    float64
	EyeCenter landmark.Point
}

// FacePoints extracts the reference points of set. It returns false when the
// set is too short for vocab.
func FacePoints(set landmark.Set, vocab *landmark.Vocabulary) (Points, bool) {
	if !vocab.Valid(set) {
		return Points{}, false
	}

	p := Points{
		NoseTip:       set[vocab.NoseTip],
		Forehead:      set[vocab.Forehead],
		LeftEyeOuter:  set[vocab.LeftEyeOuter],
		LeftEyeInner:  set[vocab.LeftEyeInner],
		RightEyeInner: set[vocab.RightEyeInner],
		RightEyeOuter: set[vocab.RightEyeOuter],
		MouthLeft:     set[vocab.MouthLeft],
		MouthRight:    set[vocab.MouthRight],
		UpperLip:      set[vocab.UpperLip],
		LowerLip:      set[vocab.LowerLip],
		LeftCheek:     set[vocab.LeftCheek],
		RightCheek:    set[vocab.RightCheek],
		Chin:          set[vocab.Chin],
	}
	p.LeftEye = Midpoint(p.LeftEyeOuter, p.LeftEyeInner)
	p.RightEye = Midpoint(p.RightEyeInner, p.RightEyeOuter)
	return p, true
}

// FaceDimensions returns the face width (eye to eye), face height (forehead to
// nose tip) and the eye centre.
func FaceDimensions(p Points) Dimensions {
	return Dimensions{
		Width:     math.Abs(p.RightEye.X - p.LeftEye.X),
		Height:    math.Abs(p.Forehead.Y - p.NoseTip.Y),
		EyeCenter: Midpoint(p.LeftEye, p.RightEye),
	}
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b landmark.Point) landmark.Point {
	return a.Add(b).Mul(0.5)
}

// Distance2D is the planar distance between a and b, ignoring depth.
func Distance2D(a, b landmark.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
