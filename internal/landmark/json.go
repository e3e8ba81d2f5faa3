package landmark

import (
	"encoding/json"
	"fmt"
	"io"
)

// snapshotJSON is the on-disk form: points are [x, y, z] triples.
type snapshotJSON struct {
	Vocabulary string         `json:"vocabulary"`
	Faces      [][][3]float64 `json:"faces"`
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	var raw snapshotJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode landmarks: %w", err)
	}

	vocab, ok := ByName(raw.Vocabulary)
	if !ok {
		return Snapshot{}, fmt.Errorf("unknown landmark vocabulary %q", raw.Vocabulary)
	}

	snap := Snapshot{Vocabulary: vocab, Faces: make([]Set, len(raw.Faces))}
	for i, face := range raw.Faces {
		set := make(Set, len(face))
		for j, p := range face {
			set[j] = Point{X: p[0], Y: p[1], Z: p[2]}
		}
		snap.Faces[i] = set
	}
	return snap, nil
}

// Encode writes the snapshot as JSON.
func Encode(w io.Writer, s Snapshot) error {
	raw := snapshotJSON{Faces: make([][][3]float64, len(s.Faces))}
	if s.Vocabulary != nil {
		raw.Vocabulary = s.Vocabulary.Name
	}
	for i, face := range s.Faces {
		pts := make([][3]float64, len(face))
		for j, p := range face {
			pts[j] = [3]float64{p.X, p.Y, p.Z}
		}
		raw.Faces[i] = pts
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}
