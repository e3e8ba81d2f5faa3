// Package landmark holds face landmark snapshots produced by a detector.
package landmark

import "github.com/golang/geo/r3"

// Point is a landmark position: X and Y in canvas pixels, Z is relative depth.
type Point = r3.Vector

// Set is the ordered landmark sequence of one face.
type Set []Point

// Snapshot is every face seen in one detection cycle.
// Snapshots are never mutated in place; operations return new values.
type Snapshot struct {
	Vocabulary *Vocabulary
	Faces      []Set
}

// Empty reports whether the snapshot carries no faces.
func (s Snapshot) Empty() bool {
	return len(s.Faces) == 0
}

// Valid reports whether a face set can be dereferenced with this snapshot's
// vocabulary.
func (s Snapshot) Valid(i int) bool {
	if i < 0 || i >= len(s.Faces) || s.Vocabulary == nil {
		return false
	}
	return s.Vocabulary.Valid(s.Faces[i])
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Vocabulary: s.Vocabulary}
	if s.Faces == nil {
		return out
	}
	out.Faces = make([]Set, len(s.Faces))
	for i, face := range s.Faces {
		out.Faces[i] = append(Set(nil), face...)
	}
	return out
}

// Interpolate blends b into a by factor for every face index present in both
// snapshots: p = a + (b-a)*factor, componentwise. Faces present in only one of
// the snapshots are copied through unchanged. Faces whose point counts differ
// are taken from b.
func Interpolate(a, b Snapshot, factor float64) Snapshot {
	vocab := b.Vocabulary
	if vocab == nil {
		vocab = a.Vocabulary
	}

	n := max(len(a.Faces), len(b.Faces))
	out := Snapshot{Vocabulary: vocab, Faces: make([]Set, 0, n)}

	for i := 0; i < n; i++ {
		switch {
		case i >= len(a.Faces):
			out.Faces = append(out.Faces, append(Set(nil), b.Faces[i]...))
		case i >= len(b.Faces):
			out.Faces = append(out.Faces, append(Set(nil), a.Faces[i]...))
		case len(a.Faces[i]) != len(b.Faces[i]):
			out.Faces = append(out.Faces, append(Set(nil), b.Faces[i]...))
		default:
			out.Faces = append(out.Faces, blend(a.Faces[i], b.Faces[i], factor))
		}
	}
	return out
}

func blend(a, b Set, factor float64) Set {
	out := make(Set, len(a))
	for i := range a {
		out[i] = a[i].Add(b[i].Sub(a[i]).Mul(factor))
	}
	return out
}
