package perf

import (
	"math"
	"testing"
	"time"

	"github.com/dudu/facefx/internal/landmark"
)

// frameClock feeds a controller frames spaced by a fixed delta.
type frameClock struct {
	now time.Time
}

func newFrameClock() *frameClock {
	return &frameClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// run records one full sampling window of frames at the given rate.
func (f *frameClock) run(c *Controller, fps float64) {
	delta := time.Duration(float64(time.Second) / fps)
	for i := 0; i < SampleEvery; i++ {
		f.now = f.now.Add(delta)
		c.RecordFrame(f.now)
	}
}

func TestTierConfigs(t *testing.T) {
	med := TierMedium.Config()
	if med.SkipFrames != 2 || med.ParticleCount != 6 || med.ShadowBlur != 5 {
		t.Errorf("medium config = %+v; want skip 2, particles 6, blur 5", med)
	}
	if TierHigh.Config().TargetFPS <= TierLow.Config().TargetFPS {
		t.Error("high tier target FPS should exceed low tier target FPS")
	}
	if Tier(42).Config() != TierLow.Config() {
		t.Error("unknown tier should map to low config")
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range []Tier{TierHigh, TierMedium, TierLow} {
		got, err := ParseTier(tier.String())
		if err != nil || got != tier {
			t.Errorf("ParseTier(%q) = %v, %v; want %v", tier.String(), got, err, tier)
		}
	}
	if _, err := ParseTier("ultra"); err == nil {
		t.Error("ParseTier(ultra) error = nil; want error")
	}
}

func TestTierStepsDownOneLevelAtATime(t *testing.T) {
	c := New(TierHigh)
	clock := newFrameClock()

	want := []Tier{TierMedium, TierLow, TierLow, TierLow}
	for i, w := range want {
		clock.run(c, 5)
		if got := c.Tier(); got != w {
			t.Fatalf("after slow window %d tier = %v; want %v", i+1, got, w)
		}
	}
}

func TestTierNeverRaisesAutomatically(t *testing.T) {
	c := New(TierLow)
	clock := newFrameClock()

	for i := 0; i < 10; i++ {
		clock.run(c, 500)
		if got := c.Tier(); got != TierLow {
			t.Fatalf("after fast window %d tier = %v; want low", i+1, got)
		}
	}
}

func TestSkipIntervalBounds(t *testing.T) {
	c := New(TierHigh)
	clock := newFrameClock()

	for i := 0; i < 12; i++ {
		clock.run(c, 2)
		if s := c.SkipInterval(); s < MinSkipInterval || s > MaxSkipInterval {
			t.Fatalf("skip interval = %d; want within [1,5]", s)
		}
	}
	if s := c.SkipInterval(); s != MaxSkipInterval {
		t.Errorf("skip interval after sustained slowness = %d; want %d", s, MaxSkipInterval)
	}

	for i := 0; i < 12; i++ {
		clock.run(c, 1000)
		if s := c.SkipInterval(); s < MinSkipInterval || s > MaxSkipInterval {
			t.Fatalf("skip interval = %d; want within [1,5]", s)
		}
	}
	if s := c.SkipInterval(); s != MinSkipInterval {
		t.Errorf("skip interval after sustained speed = %d; want %d", s, MinSkipInterval)
	}
}

func TestFPSInsideDeadBandHoldsState(t *testing.T) {
	c := New(TierMedium)
	clock := newFrameClock()

	clock.run(c, 30)
	if c.Tier() != TierMedium || c.SkipInterval() != 2 {
		t.Errorf("state = %v/%d; want medium/2", c.Tier(), c.SkipInterval())
	}
}

func TestFPSUsesLatestDelta(t *testing.T) {
	c := New(TierHigh)
	clock := newFrameClock()

	// 29 slow frames followed by one fast frame: the sample sees only the fast one.
	for i := 0; i < SampleEvery-1; i++ {
		clock.now = clock.now.Add(100 * time.Millisecond)
		c.RecordFrame(clock.now)
	}
	clock.now = clock.now.Add(10 * time.Millisecond)
	c.RecordFrame(clock.now)

	if c.Tier() != TierHigh {
		t.Errorf("tier = %v; want high because the sampled frame ran at 100 FPS", c.Tier())
	}
	if fps := c.Stats().FPS; math.Abs(fps-100) > 1e-6 {
		t.Errorf("FPS = %v; want 100", fps)
	}
}

func TestShouldSkipFrame(t *testing.T) {
	c := New(TierLow) // skip interval 3

	var detected []int
	for counter := 1; counter <= 9; counter++ {
		if !c.ShouldSkipFrame(counter) {
			detected = append(detected, counter)
		}
	}
	want := []int{3, 6, 9}
	if len(detected) != len(want) {
		t.Fatalf("detection frames = %v; want %v", detected, want)
	}
	for i := range want {
		if detected[i] != want[i] {
			t.Errorf("detection frames = %v; want %v", detected, want)
		}
	}

	if New(TierHigh).ShouldSkipFrame(7) {
		t.Error("skip interval 1 should never skip")
	}
}

func TestQualitySettingsMemoryPressure(t *testing.T) {
	tests := []struct {
		name          string
		tier          Tier
		resources     int
		wantLevel     int
		wantSkip      int
		wantParticles int
		wantBlur      int
	}{
		{"medium no pressure", TierMedium, 10, 0, 2, 6, 5},
		{"medium moderate", TierMedium, 600, 1, 3, 5, 3},
		{"medium high", TierMedium, 5000, 2, 4, 4, 1},
		{"low high clamps", TierLow, 1000, 2, 5, 1, 0},
		{"high moderate", TierHigh, 500, 1, 2, 9, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.tier)
			level, _ := c.UpdateMemoryPressure(tt.resources)
			if level != tt.wantLevel {
				t.Fatalf("level = %d; want %d", level, tt.wantLevel)
			}

			q := c.QualitySettings()
			if q.SkipFrames != tt.wantSkip || q.ParticleCount != tt.wantParticles || q.ShadowBlur != tt.wantBlur {
				t.Errorf("quality = skip %d, particles %d, blur %d; want %d, %d, %d",
					q.SkipFrames, q.ParticleCount, q.ShadowBlur, tt.wantSkip, tt.wantParticles, tt.wantBlur)
			}
			if q.Tier != tt.tier {
				t.Errorf("memory pressure changed tier to %v", q.Tier)
			}
		})
	}
}

func TestMemoryPressureInvokesCleaner(t *testing.T) {
	calls := 0
	c := New(TierHigh,
		WithMemoryThresholds(10, 20),
		WithCleaner(CleanerFunc(func() { calls++ })),
	)

	if _, cleaned := c.UpdateMemoryPressure(15); cleaned || calls != 0 {
		t.Errorf("moderate pressure invoked cleaner (cleaned=%v, calls=%d)", cleaned, calls)
	}
	if _, cleaned := c.UpdateMemoryPressure(25); !cleaned || calls != 1 {
		t.Errorf("high pressure: cleaned=%v calls=%d; want true, 1", cleaned, calls)
	}
	if c.Tier() != TierHigh {
		t.Errorf("tier = %v; memory pressure must not change tier", c.Tier())
	}
	if lvl, _ := c.UpdateMemoryPressure(0); lvl != 0 || c.Stats().MemoryLevel != 0 {
		t.Errorf("level after recovery = %d; want 0", lvl)
	}
}

func TestInterpolatedBlendsTowardLastDetection(t *testing.T) {
	c := New(TierLow)

	first := landmark.Snapshot{Vocabulary: landmark.Compact, Faces: []landmark.Set{{{X: 0, Y: 0, Z: 0}}}}
	second := landmark.Snapshot{Vocabulary: landmark.Compact, Faces: []landmark.Set{{{X: 100, Y: 50, Z: 10}}}}

	c.Detected(first)
	if p := c.Interpolated().Faces[0][0]; p.X != 0 {
		t.Fatalf("interpolation toward the only detection X = %v; want 0", p.X)
	}
	c.Detected(second)

	got := c.Interpolated()
	p := got.Faces[0][0]
	if math.Abs(p.X-30) > 1e-9 || math.Abs(p.Y-15) > 1e-9 || math.Abs(p.Z-3) > 1e-9 {
		t.Errorf("interpolated point = %v; want (30, 15, 3)", p)
	}

	// The cache is replaced, so the next skipped frame continues from there.
	p = c.Interpolated().Faces[0][0]
	if math.Abs(p.X-51) > 1e-9 {
		t.Errorf("second interpolation X = %v; want 51", p.X)
	}
	if c.Cached().Faces[0][0] != p {
		t.Error("Cached() does not return the last interpolated snapshot")
	}
}

func TestSetTierResetsSkip(t *testing.T) {
	c := New(TierHigh)
	c.SetTier(TierLow)
	if c.Tier() != TierLow || c.SkipInterval() != 3 {
		t.Errorf("after SetTier(low) = %v/%d; want low/3", c.Tier(), c.SkipInterval())
	}
	c.SetTier(Tier(-1))
	if c.Tier() != TierLow {
		t.Error("SetTier accepted an invalid tier")
	}
}

func TestDetectedReseedsCache(t *testing.T) {
	face := func(x float64) landmark.Set { return landmark.Set{{X: x}} }
	tests := []struct {
		name      string
		next      landmark.Snapshot
		wantFaces int
		wantX     float64 // first face after one interpolation
	}{
		{"same faces blend", landmark.Snapshot{Vocabulary: landmark.Compact, Faces: []landmark.Set{face(100), face(100)}}, 2, 30},
		{"lost face dropped", landmark.Snapshot{Vocabulary: landmark.Compact, Faces: []landmark.Set{face(100)}}, 1, 30},
		{"empty clears", landmark.Snapshot{Vocabulary: landmark.Compact}, 0, 0},
		{"vocabulary change", landmark.Snapshot{Vocabulary: landmark.MediaPipe, Faces: []landmark.Set{face(100)}}, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(TierLow)
			c.Detected(landmark.Snapshot{Vocabulary: landmark.Compact, Faces: []landmark.Set{face(0), face(0)}})
			c.Interpolated()
			c.Detected(tt.next)

			got := c.Interpolated()
			if len(got.Faces) != tt.wantFaces {
				t.Fatalf("faces = %d; want %d", len(got.Faces), tt.wantFaces)
			}
			if tt.wantFaces > 0 && math.Abs(got.Faces[0][0].X-tt.wantX) > 1e-9 {
				t.Errorf("X = %v; want %v", got.Faces[0][0].X, tt.wantX)
			}
		})
	}
}
