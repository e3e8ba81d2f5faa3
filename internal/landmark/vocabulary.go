package landmark

// Vocabulary maps the named reference points used by the renderers to indices
// of a detector's landmark layout.
type Vocabulary struct {
	Name      string
	MinPoints int

	NoseTip       int
	Forehead      int
	LeftEyeOuter  int
	LeftEyeInner  int
	RightEyeInner int
	RightEyeOuter int
	MouthLeft     int
	MouthRight    int
	UpperLip      int
	LowerLip      int
	LeftCheek     int
	RightCheek    int
	Chin          int
}

// Indices returns every index the renderers dereference.
func (v *Vocabulary) Indices() []int {
	return []int{
		v.NoseTip, v.Forehead,
		v.LeftEyeOuter, v.LeftEyeInner, v.RightEyeInner, v.RightEyeOuter,
		v.MouthLeft, v.MouthRight, v.UpperLip, v.LowerLip,
		v.LeftCheek, v.RightCheek, v.Chin,
	}
}

// Valid reports whether set is long enough for every index of the vocabulary.
func (v *Vocabulary) Valid(set Set) bool {
	if v == nil || len(set) < v.MinPoints {
		return false
	}
	for _, idx := range v.Indices() {
		if idx < 0 || idx >= len(set) {
			return false
		}
	}
	return true
}

// MediaPipe is the 468-point face mesh layout.
var MediaPipe = &Vocabulary{
	Name:          "mediapipe",
	MinPoints:     468,
	NoseTip:       1,
	Forehead:      10,
	LeftEyeOuter:  33,
	LeftEyeInner:  133,
	RightEyeInner: 362,
	RightEyeOuter: 263,
	MouthLeft:     61,
	MouthRight:    291,
	UpperLip:      13,
	LowerLip:      14,
	LeftCheek:     234,
	RightCheek:    454,
	Chin:          152,
}

// Compact indices, in the order the in-repo detectors emit them.
const (
	CompactNoseTip = iota
	CompactForehead
	CompactLeftEyeOuter
	CompactLeftEyeInner
	CompactRightEyeInner
	CompactRightEyeOuter
	CompactMouthLeft
	CompactMouthRight
	CompactUpperLip
	CompactLowerLip
	CompactLeftCheek
	CompactRightCheek
	CompactChin
	CompactPoints
)

// Compact is the 13-point layout produced by the pigo and ONNX detectors.
var Compact = &Vocabulary{
	Name:          "compact",
	MinPoints:     CompactPoints,
	NoseTip:       CompactNoseTip,
	Forehead:      CompactForehead,
	LeftEyeOuter:  CompactLeftEyeOuter,
	LeftEyeInner:  CompactLeftEyeInner,
	RightEyeInner: CompactRightEyeInner,
	RightEyeOuter: CompactRightEyeOuter,
	MouthLeft:     CompactMouthLeft,
	MouthRight:    CompactMouthRight,
	UpperLip:      CompactUpperLip,
	LowerLip:      CompactLowerLip,
	LeftCheek:     CompactLeftCheek,
	RightCheek:    CompactRightCheek,
	Chin:          CompactChin,
}

// ByName returns a built-in vocabulary.
func ByName(name string) (*Vocabulary, bool) {
	switch name {
	case MediaPipe.Name:
		return MediaPipe, true
	case Compact.Name:
		return Compact, true
	}
	return nil, false
}
