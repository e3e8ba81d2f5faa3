package main

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/pipeline"
)

func TestScriptedDetectorMoves(t *testing.T) {
	d := &scriptedDetector{width: 640, height: 480, faces: 2}

	first, err := d.Detect(context.Background(), nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Faces) != 2 {
		t.Fatalf("faces = %d, want 2", len(first.Faces))
	}
	for i := range first.Faces {
		if !first.Valid(i) {
			t.Errorf("face %d not valid for %s", i, first.Vocabulary.Name)
		}
	}
	if first.Faces[0][landmark.CompactNoseTip].X >= first.Faces[1][landmark.CompactNoseTip].X {
		t.Error("faces should be laid out left to right")
	}

	second, _ := d.Detect(context.Background(), nil, 0.5)
	if first.Faces[0][landmark.CompactNoseTip] == second.Faces[0][landmark.CompactNoseTip] {
		t.Error("face did not move between detections")
	}
}

func TestScriptedDetectorHonoursContext(t *testing.T) {
	d := &scriptedDetector{width: 640, height: 480, faces: 1, delay: 1 << 40}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, nil, 0.5); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSyntheticSourceEnds(t *testing.T) {
	src := newSyntheticSource(8, 4, 2)
	for i := 0; i < 2; i++ {
		frame, err := src.Read(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if frame.Width() != 8 || frame.Height() != 4 {
			t.Fatalf("frame size %dx%d", frame.Width(), frame.Height())
		}
	}
	if _, err := src.Read(context.Background()); !errors.Is(err, pipeline.ErrEndOfStream) {
		t.Fatalf("err = %v, want ErrEndOfStream", err)
	}
}

func TestScaleSnapshot(t *testing.T) {
	snap := landmark.Snapshot{
		Vocabulary: landmark.Compact,
		Faces:      []landmark.Set{{{X: 10, Y: 20, Z: 2}}},
	}
	got := scaleSnapshot(snap, 0.5)
	if p := got.Faces[0][0]; p.X != 5 || p.Y != 10 || p.Z != 1 {
		t.Errorf("scaled point = %v", p)
	}
	if snap.Faces[0][0].X != 10 {
		t.Error("input snapshot was mutated")
	}
}

func TestImageFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"out.png", "png", false},
		{"OUT.JPG", "jpeg", false},
		{"a/b.jpeg", "jpeg", false},
		{"out.gif", "", true},
		{"out", "", true},
	}
	for _, tt := range tests {
		got, err := imageFormat(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("imageFormat(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestToCanvasResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 210, 110))

	same := toCanvas(src, 0)
	if same.Width() != 200 || same.Height() != 100 {
		t.Errorf("unscaled size %dx%d", same.Width(), same.Height())
	}

	half := toCanvas(src, 100)
	if half.Width() != 100 || half.Height() != 50 {
		t.Errorf("scaled size %dx%d", half.Width(), half.Height())
	}
}
