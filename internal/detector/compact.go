package detector

import (
	"math"

	"github.com/dudu/facefx/internal/landmark"
)

// Proportions of an upright face relative to the eye line, matching
// landmark.FrontalLayout.
const (
	foreheadFromNose = 2.0         // forehead sits twice the eye-to-nose drop above the eyes
	chinFromMouth    = 0.45 / 0.65 // chin sits below the mouth by this share of eye-to-mouth
	eyeWidthRatio    = 0.2
	mouthHeightRatio = 0.1
)

// Layout estimates a full face layout from the five keypoints. The eye and
// mouth pairs are ordered by x so Left is always the image-left point.
func (l Landmarks) Layout() landmark.Layout {
	le, re := l.LeftEye.vec(), l.RightEye.vec()
	if re.X < le.X {
		le, re = re, le
	}
	ml, mr := l.LeftMouth.vec(), l.RightMouth.vec()
	if mr.X < ml.X {
		ml, mr = mr, ml
	}
	nose := l.Nose.vec()
	return estimate(le, re, nose, ml, mr)
}

func estimate(le, re, nose, ml, mr landmark.Point) landmark.Layout {
	eyeCenter := le.Add(re).Mul(0.5)
	mouthMid := ml.Add(mr).Mul(0.5)
	d := re.Sub(le).Norm()

	return landmark.Layout{
		LeftEye:     le,
		RightEye:    re,
		Nose:        nose,
		Forehead:    eyeCenter.Sub(nose.Sub(eyeCenter).Mul(foreheadFromNose)),
		MouthLeft:   ml,
		MouthRight:  mr,
		Chin:        mouthMid.Add(mouthMid.Sub(eyeCenter).Mul(chinFromMouth)),
		EyeWidth:    eyeWidthRatio * d,
		MouthHeight: mouthHeightRatio * d,
	}
}

type span struct {
	sum                    landmark.Point
	n                      int
	minX, maxX, minY, maxY landmark.Point
}

func (l *Landmarks106) span(first, last int) span {
	s := span{}
	for i := first; i <= last; i++ {
		p := l[i].vec()
		if s.n == 0 || p.X < s.minX.X {
			s.minX = p
		}
		if s.n == 0 || p.X > s.maxX.X {
			s.maxX = p
		}
		if s.n == 0 || p.Y < s.minY.Y {
			s.minY = p
		}
		if s.n == 0 || p.Y > s.maxY.Y {
			s.maxY = p
		}
		s.sum = s.sum.Add(p)
		s.n++
	}
	return s
}

func (s span) mean() landmark.Point { return s.sum.Mul(1 / float64(s.n)) }

// Compact maps the dense landmarks onto the compact vocabulary. Eye regions
// are assigned left and right by position, eye corners are the horizontal
// extremes of each region, lips are the vertical extremes of the mouth and
// cheeks are the contour points level with the nose.
func (l *Landmarks106) Compact() landmark.Set {
	a, b := l.span(eyeAFirst, eyeALast), l.span(eyeBFirst, eyeBLast)
	if b.mean().X < a.mean().X {
		a, b = b, a
	}
	ml, mr := l[mouthCornerA].vec(), l[mouthCornerB].vec()
	if mr.X < ml.X {
		ml, mr = mr, ml
	}
	nose := l[noseTip106].vec()
	mouth := l.span(mouthFirst, mouthLast)

	layout := estimate(a.mean(), b.mean(), nose, ml, mr)
	layout.Chin = l[chin106].vec()

	v := landmark.Compact
	set := layout.Set(v)
	set[v.LeftEyeOuter] = a.minX
	set[v.LeftEyeInner] = a.maxX
	set[v.RightEyeInner] = b.minX
	set[v.RightEyeOuter] = b.maxX
	set[v.UpperLip] = mouth.minY
	set[v.LowerLip] = mouth.maxY

	if left, ok := l.contourNear(nose, -1); ok {
		set[v.LeftCheek] = left
	}
	if right, ok := l.contourNear(nose, 1); ok {
		set[v.RightCheek] = right
	}
	return set
}

// contourNear returns the contour point on the given side of the nose
// (-1 left, 1 right) closest to its height.
func (l *Landmarks106) contourNear(nose landmark.Point, side float64) (landmark.Point, bool) {
	best, found := landmark.Point{}, false
	bestDY := math.Inf(1)
	for i := contourFirst; i <= contourLast; i++ {
		p := l[i].vec()
		if (p.X-nose.X)*side <= 0 {
			continue
		}
		if dy := math.Abs(p.Y - nose.Y); dy < bestDY {
			best, bestDY, found = p, dy, true
		}
	}
	return best, found
}
