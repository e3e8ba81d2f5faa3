package detector

import (
	"cmp"
	"slices"
)

// suppress keeps the highest scoring face of every cluster whose boxes
// overlap by more than threshold IoU. faces is reordered by score.
func suppress(faces []Face, threshold float32) []Face {
	slices.SortStableFunc(faces, func(a, b Face) int {
		return cmp.Compare(b.Score, a.Score)
	})

	kept := faces[:0:0]
	for _, f := range faces {
		if !slices.ContainsFunc(kept, func(k Face) bool {
			return k.BoundingBox.IoU(f.BoundingBox) > threshold
		}) {
			kept = append(kept, f)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes, 0 when they are
// disjoint or degenerate.
func (b BoundingBox) IoU(o BoundingBox) float32 {
	inter := BoundingBox{
		X1: max(b.X1, o.X1), Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2), Y2: min(b.Y2, o.Y2),
	}
	if inter.X1 >= inter.X2 || inter.Y1 >= inter.Y2 {
		return 0
	}
	union := b.Area() + o.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}
