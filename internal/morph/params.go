// Package morph implements the face morph filter: an inverse warp that slims
// the face and enlarges the eyes and mouth inside a bounded region.
package morph

import (
	"math"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/perf"
)

// Params controls the strength and extent of the warp.
type Params struct {
	Intensity    float64
	EyeScale     float64
	MouthScale   float64
	FaceSlim     float64 // horizontal compression outside the centre band, <1 slims
	JawReduction float64 // extra compression blended in below the nose

	RegionPadding float64
	RegionWidth   float64 // multiple of face width
	RegionHeight  float64 // multiple of face height
}

var tierParams = [...]Params{
	perf.TierHigh: {
		Intensity: 1.0, EyeScale: 2.5, MouthScale: 1.8, FaceSlim: 0.85, JawReduction: 0.90,
		RegionPadding: 1.5, RegionWidth: 2.5, RegionHeight: 3.0,
	},
	perf.TierMedium: {
		Intensity: 0.8, EyeScale: 2.0, MouthScale: 1.5, FaceSlim: 0.90, JawReduction: 0.92,
		RegionPadding: 1.3, RegionWidth: 2.2, RegionHeight: 2.6,
	},
	perf.TierLow: {
		Intensity: 0.6, EyeScale: 1.6, MouthScale: 1.3, FaceSlim: 0.93, JawReduction: 0.95,
		RegionPadding: 1.1, RegionWidth: 2.0, RegionHeight: 2.3,
	},
}

// ParamsFor returns the warp parameters of a tier. Unknown tiers get the Low
// parameters.
func ParamsFor(t perf.Tier) Params {
	if !t.Valid() {
		return tierParams[perf.TierLow]
	}
	return tierParams[t]
}

// ComputeRegion returns the rectangle to warp: centred on eyeCenter, sized
// faceW*RegionWidth*RegionPadding by faceH*RegionHeight*RegionPadding, and
// clipped to the canvas. The result may have zero area but never negative
// dimensions.
func ComputeRegion(eyeCenter landmark.Point, faceW, faceH float64, p Params, canvasW, canvasH int) canvas.Region {
	w := faceW * p.RegionWidth * p.RegionPadding
	h := faceH * p.RegionHeight * p.RegionPadding
	if !(w > 0) || !(h > 0) || canvasW <= 0 || canvasH <= 0 ||
		math.IsNaN(eyeCenter.X) || math.IsNaN(eyeCenter.Y) {
		return canvas.Region{}
	}

	minX := clampCoord(math.Floor(eyeCenter.X-w/2), canvasW)
	minY := clampCoord(math.Floor(eyeCenter.Y-h/2), canvasH)
	maxX := clampCoord(math.Ceil(eyeCenter.X+w/2), canvasW)
	maxY := clampCoord(math.Ceil(eyeCenter.Y+h/2), canvasH)

	return canvas.Region{
		X:      minX,
		Y:      minY,
		Width:  max(0, maxX-minX),
		Height: max(0, maxY-minY),
	}
}

// clampCoord clamps v to [0, limit] before converting, so infinities and
// huge values cannot overflow the int conversion.
func clampCoord(v float64, limit int) int {
	return int(math.Min(float64(limit), math.Max(0, v)))
}
