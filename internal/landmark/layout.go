package landmark

// Layout describes a face by its key positions. It is used to synthesise
// landmark sets for benchmarks and still renders.
type Layout struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	Forehead   Point
	MouthLeft  Point
	MouthRight Point
	Chin       Point

	EyeWidth    float64 // corner to corner
	MouthHeight float64 // upper to lower lip
}

// FrontalLayout returns an upright face whose eyes are centred on (cx, cy)
// and eyeDist pixels apart.
func FrontalLayout(cx, cy, eyeDist float64) Layout {
	half := eyeDist / 2
	return Layout{
		LeftEye:     Point{X: cx - half, Y: cy},
		RightEye:    Point{X: cx + half, Y: cy},
		Nose:        Point{X: cx, Y: cy + 0.3*eyeDist},
		Forehead:    Point{X: cx, Y: cy - 0.6*eyeDist},
		MouthLeft:   Point{X: cx - 0.3*eyeDist, Y: cy + 0.65*eyeDist},
		MouthRight:  Point{X: cx + 0.3*eyeDist, Y: cy + 0.65*eyeDist},
		Chin:        Point{X: cx, Y: cy + 1.1*eyeDist},
		EyeWidth:    0.2 * eyeDist,
		MouthHeight: 0.1 * eyeDist,
	}
}

// Translate returns the layout moved by (dx, dy).
func (l Layout) Translate(dx, dy float64) Layout {
	d := Point{X: dx, Y: dy}
	l.LeftEye = l.LeftEye.Add(d)
	l.RightEye = l.RightEye.Add(d)
	l.Nose = l.Nose.Add(d)
	l.Forehead = l.Forehead.Add(d)
	l.MouthLeft = l.MouthLeft.Add(d)
	l.MouthRight = l.MouthRight.Add(d)
	l.Chin = l.Chin.Add(d)
	return l
}

// Set renders the layout into a landmark set of vocab's length. Points the
// vocabulary does not name are placed on the nose tip.
func (l Layout) Set(vocab *Vocabulary) Set {
	set := make(Set, vocab.MinPoints)
	for i := range set {
		set[i] = l.Nose
	}

	halfEye := Point{X: l.EyeWidth / 2}
	set[vocab.NoseTip] = l.Nose
	set[vocab.Forehead] = l.Forehead
	set[vocab.LeftEyeOuter] = l.LeftEye.Sub(halfEye)
	set[vocab.LeftEyeInner] = l.LeftEye.Add(halfEye)
	set[vocab.RightEyeInner] = l.RightEye.Sub(halfEye)
	set[vocab.RightEyeOuter] = l.RightEye.Add(halfEye)
	set[vocab.MouthLeft] = l.MouthLeft
	set[vocab.MouthRight] = l.MouthRight

	mouthMid := l.MouthLeft.Add(l.MouthRight).Mul(0.5)
	halfLip := Point{Y: l.MouthHeight / 2}
	set[vocab.UpperLip] = mouthMid.Sub(halfLip)
	set[vocab.LowerLip] = mouthMid.Add(halfLip)

	eyeDist := l.RightEye.X - l.LeftEye.X
	set[vocab.LeftCheek] = Point{X: l.LeftEye.X - 0.35*eyeDist, Y: l.Nose.Y, Z: l.Nose.Z}
	set[vocab.RightCheek] = Point{X: l.RightEye.X + 0.35*eyeDist, Y: l.Nose.Y, Z: l.Nose.Z}
	set[vocab.Chin] = l.Chin
	return set
}
