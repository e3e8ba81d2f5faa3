package morph

import (
	"math"

	"github.com/dudu/facefx/internal/geometry"
	"github.com/dudu/facefx/internal/landmark"
)

const (
	// Above these scale factors the falloff is sharpened with an exponent.
	eyeSharpenThreshold   = 2.0
	mouthSharpenThreshold = 1.6
	eyeSharpenExponent    = 0.7
	mouthSharpenExponent  = 0.8

	// Ellipse radii relative to the feature size.
	eyeRadiusX   = 1.0 // times eye width
	eyeRadiusY   = 0.75
	mouthRadiusX = 0.6 // times mouth width
	mouthRadiusY = 0.6
	// slimBand is the half width of the untouched vertical strip, relative to
	// the cheek half width.
	slimBand = 0.25

	// Radii at or below epsilon are degenerate and have no influence.
	epsilon = 1e-6
)

// ellipse is an axis-aligned influence area.
type ellipse struct {
	c      landmark.Point
	rx, ry float64
}

// distance returns the normalised elliptical distance of (x, y) from the
// centre, or ok=false for a degenerate ellipse.
func (e ellipse) distance(x, y float64) (d float64, ok bool) {
	if !(e.rx > epsilon) || !(e.ry > epsilon) {
		return 0, false
	}
	dx := (x - e.c.X) / e.rx
	dy := (y - e.c.Y) / e.ry
	return math.Sqrt(dx*dx + dy*dy), true
}

// influence is the cosine falloff cos(d*pi/2) inside the ellipse, optionally
// sharpened by exponent, and zero outside.
func (e ellipse) influence(x, y, exponent float64) float64 {
	d, ok := e.distance(x, y)
	if !ok || d >= 1 {
		return 0
	}
	inf := math.Cos(d * math.Pi / 2)
	if exponent != 1 {
		inf = math.Pow(inf, exponent)
	}
	return inf
}

// enlarge is a radial magnification around an ellipse centre.
type enlarge struct {
	area     ellipse
	scale    float64
	exponent float64
}

func (e enlarge) apply(x, y, intensity float64) (float64, float64) {
	inf := e.area.influence(x, y, e.exponent)
	if inf == 0 {
		return x, y
	}
	s := 1 + (e.scale-1)*inf*intensity
	if s == 1 || !(s > epsilon) {
		return x, y
	}
	return e.area.c.X + (x-e.area.c.X)/s, e.area.c.Y + (y-e.area.c.Y)/s
}

// slim compresses the lower face horizontally toward its midline outside a
// central band; the inverse therefore spreads samples away from the midline.
// Its ellipse spans the eye line to the chin, so the eyes themselves are
// never moved.
type slim struct {
	area      ellipse
	band      float64
	factor    float64
	jaw       float64
	noseY     float64
	chinY     float64
	intensity float64
}

func (s slim) apply(x, y float64) (float64, float64) {
	inf := s.area.influence(x, y, 1)
	if inf == 0 {
		return x, y
	}
	dx := x - s.area.c.X
	ax := math.Abs(dx)
	if ax <= s.band {
		return x, y
	}

	compress := s.factor
	if y > s.noseY && s.chinY > s.noseY {
		t := math.Min(1, (y-s.noseY)/(s.chinY-s.noseY))
		compress *= 1 - (1-s.jaw)*t
	}
	scale := 1 - (1-compress)*inf*s.intensity
	if scale == 1 || !(scale > epsilon) {
		return x, y
	}
	src := s.band + (ax-s.band)/scale
	return s.area.c.X + math.Copysign(src, dx), y
}

// Warp is the inverse mapping for one face, precomputed so that per-pixel
// evaluation does no landmark lookups.
type Warp struct {
	intensity float64
	slim      slim
	leftEye   enlarge
	rightEye  enlarge
	mouth     enlarge
}

// NewWarp builds the inverse mapping for a face.
func NewWarp(pts geometry.Points, p Params) Warp {
	eyeExp, mouthExp := 1.0, 1.0
	if p.EyeScale > eyeSharpenThreshold {
		eyeExp = eyeSharpenExponent
	}
	if p.MouthScale > mouthSharpenThreshold {
		mouthExp = mouthSharpenExponent
	}

	eye := func(outer, inner, centre landmark.Point) enlarge {
		w := geometry.Distance2D(outer, inner)
		return enlarge{
			area:     ellipse{c: centre, rx: w * eyeRadiusX, ry: w * eyeRadiusY},
			scale:    p.EyeScale,
			exponent: eyeExp,
		}
	}

	mouthW := geometry.Distance2D(pts.MouthLeft, pts.MouthRight)
	mouthC := geometry.Midpoint(pts.MouthLeft, pts.MouthRight)

	eyeLine := (pts.LeftEye.Y + pts.RightEye.Y) / 2
	cheekHalf := math.Abs(pts.RightCheek.X-pts.LeftCheek.X) / 2
	faceMid := landmark.Point{
		X: (pts.LeftCheek.X + pts.RightCheek.X) / 2,
		Y: (eyeLine + pts.Chin.Y) / 2,
	}
	faceHalfH := math.Abs(pts.Chin.Y-eyeLine) / 2

	return Warp{
		intensity: p.Intensity,
		slim: slim{
			area:      ellipse{c: faceMid, rx: cheekHalf, ry: faceHalfH},
			band:      cheekHalf * slimBand,
			factor:    p.FaceSlim,
			jaw:       p.JawReduction,
			noseY:     pts.NoseTip.Y,
			chinY:     pts.Chin.Y,
			intensity: p.Intensity,
		},
		leftEye:  eye(pts.LeftEyeOuter, pts.LeftEyeInner, pts.LeftEye),
		rightEye: eye(pts.RightEyeOuter, pts.RightEyeInner, pts.RightEye),
		mouth: enlarge{
			area:     ellipse{c: mouthC, rx: mouthW * mouthRadiusX, ry: mouthW * mouthRadiusY},
			scale:    p.MouthScale,
			exponent: mouthExp,
		},
	}
}

// Inverse maps a destination pixel to the source coordinate it samples.
// The deformations run in order (face slim, left eye, right eye, mouth),
// each reading the coordinate produced by the previous one.
func (w Warp) Inverse(x, y float64) (float64, float64) {
	x, y = w.slim.apply(x, y)
	x, y = w.leftEye.apply(x, y, w.intensity)
	x, y = w.rightEye.apply(x, y, w.intensity)
	x, y = w.mouth.apply(x, y, w.intensity)
	return x, y
}

// InverseTransform is a one-shot form of NewWarp(pts, p).Inverse(x, y).
func InverseTransform(x, y float64, pts geometry.Points, p Params) (float64, float64) {
	return NewWarp(pts, p).Inverse(x, y)
}
