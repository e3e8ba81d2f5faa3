package perf

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
)

const (
	MinSkipInterval = 1
	MaxSkipInterval = 5

	// SampleEvery is the number of rendered frames between FPS evaluations.
	SampleEvery = 30
	// FPSTolerance is the dead band around a tier's target frame rate.
	FPSTolerance = 5.0
	// InterpolationFactor is how far a skipped frame moves cached landmarks
	// toward the last detection.
	InterpolationFactor = 0.3

	DefaultMemoryModerate = 500
	DefaultMemoryHigh     = 1000

	// MemoryLevelHigh triggers the cleanup collaborator.
	MemoryLevelHigh = 2
)

// Cleaner releases cached resources when memory pressure is high.
type Cleaner interface {
	Cleanup()
}

// CleanerFunc adapts a function to Cleaner.
type CleanerFunc func()

// Cleanup calls f.
func (f CleanerFunc) Cleanup() { f() }

// Quality is the per-frame settings bundle handed to filters.
type Quality struct {
	TierConfig
	Tier        Tier
	MemoryLevel int
}

// Stats is a read-only view of the controller for display.
type Stats struct {
	Tier         Tier
	SkipInterval int
	FPS          float64
	MemoryLevel  int
	Frames       int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMemoryThresholds sets the resource counts at which pressure becomes
// moderate (level 1) and high (level 2).
func WithMemoryThresholds(moderate, high int) Option {
	return func(c *Controller) {
		c.memModerate = moderate
		c.memHigh = high
	}
}

// WithCleaner sets the collaborator invoked at high memory pressure.
func WithCleaner(cl Cleaner) Option {
	return func(c *Controller) { c.cleaner = cl }
}

// WithLogger sets the logger used for tier changes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller tracks frame rate and owns the landmark cache.
//
// Tiers are only ever lowered automatically. Recovering upward is left out
// to avoid oscillating between tiers on borderline hardware; callers may
// raise the tier explicitly with SetTier.
type Controller struct {
	mu sync.Mutex

	tier        Tier
	skip        int
	frames      int
	lastFrame   time.Time
	lastDelta   time.Duration
	fps         float64
	memoryLevel int

	memModerate int
	memHigh     int
	cleaner     Cleaner
	logger      *slog.Logger

	lastDetected landmark.Snapshot
	cached       landmark.Snapshot
}

// New creates a controller starting at tier.
func New(tier Tier, opts ...Option) *Controller {
	if !tier.Valid() {
		tier = TierLow
	}
	c := &Controller{
		tier:        tier,
		skip:        clampSkip(tier.Config().SkipFrames),
		memModerate: DefaultMemoryModerate,
		memHigh:     DefaultMemoryHigh,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tier returns the active tier.
func (c *Controller) Tier() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// SetTier replaces the active tier, e.g. after a capability probe. The skip
// interval is reset to the new tier's base value.
func (c *Controller) SetTier(t Tier) {
	if !t.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tier = t
	c.skip = clampSkip(t.Config().SkipFrames)
}

// SkipInterval returns the dynamic detection interval.
func (c *Controller) SkipInterval() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skip
}

// RecordFrame registers a rendered frame at now. Every SampleEvery frames the
// instantaneous frame rate of the latest frame is compared with the tier
// target and the skip interval and tier are adjusted.
func (c *Controller) RecordFrame(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastFrame.IsZero() {
		c.lastDelta = now.Sub(c.lastFrame)
		if c.lastDelta > 0 {
			c.fps = float64(time.Second) / float64(c.lastDelta)
		}
	}
	c.lastFrame = now
	c.frames++

	if c.frames%SampleEvery != 0 || c.lastDelta <= 0 {
		return
	}
	c.adjust(c.fps)
}

// adjust applies one FPS sample. Callers hold c.mu.
func (c *Controller) adjust(fps float64) {
	target := c.tier.Config().TargetFPS

	switch {
	case fps < target-FPSTolerance:
		c.skip = clampSkip(c.skip + 1)
		if next := c.tier.Lower(); next != c.tier {
			c.logger.Info("lowering performance tier",
				"from", c.tier.String(), "to", next.String(), "fps", fps)
			c.tier = next
		}
	case fps > target+FPSTolerance && c.skip > MinSkipInterval:
		c.skip = clampSkip(c.skip - 1)
	}
}

// ShouldSkipFrame reports whether detection should be skipped for the frame
// with the given counter value.
func (c *Controller) ShouldSkipFrame(counter int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return counter%c.skip != 0
}

// Detected stores the result of a detection frame as the target skipped
// frames move toward. The cache keeps the last interpolated snapshot so the
// blend lag carries across detections. It is reseeded from s when there is
// nothing to blend from (first detection, no faces, vocabulary change), and
// faces that s no longer has are dropped from it.
func (c *Controller) Detected(s landmark.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDetected = s
	switch {
	case len(s.Faces) == 0, len(c.cached.Faces) == 0, c.cached.Vocabulary != s.Vocabulary:
		c.cached = s
	case len(c.cached.Faces) > len(s.Faces):
		c.cached = landmark.Snapshot{
			Vocabulary: c.cached.Vocabulary,
			Faces:      c.cached.Faces[:len(s.Faces):len(s.Faces)],
		}
	}
}

// Interpolated produces the snapshot for a skipped frame by moving the cached
// snapshot InterpolationFactor of the way toward the last detection. The
// result replaces the cache.
func (c *Controller) Interpolated() landmark.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = landmark.Interpolate(c.cached, c.lastDetected, InterpolationFactor)
	return c.cached
}

// Cached returns the snapshot most recently handed to renderers.
func (c *Controller) Cached() landmark.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// QualitySettings returns the active tier's bundle throttled by memory
// pressure: skip frames rise by the level, particles fall by the level and
// shadow blur falls by twice the level.
func (c *Controller) QualitySettings() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.tier.Config()
	m := c.memoryLevel
	cfg.SkipFrames = min(MaxSkipInterval, cfg.SkipFrames+m)
	cfg.ParticleCount = max(1, cfg.ParticleCount-m)
	cfg.ShadowBlur = max(0, cfg.ShadowBlur-2*m)

	return Quality{TierConfig: cfg, Tier: c.tier, MemoryLevel: m}
}

// UpdateMemoryPressure classifies a live resource count and invokes the
// cleaner at high pressure. The tier is never changed here.
func (c *Controller) UpdateMemoryPressure(count int) (level int, cleaned bool) {
	c.mu.Lock()
	switch {
	case count >= c.memHigh:
		level = 2
	case count >= c.memModerate:
		level = 1
	}
	if level != c.memoryLevel {
		c.logger.Debug("memory pressure changed", "level", level, "resources", count)
	}
	c.memoryLevel = level
	cleaner := c.cleaner
	c.mu.Unlock()

	if level >= MemoryLevelHigh && cleaner != nil {
		cleaner.Cleanup()
		cleaned = true
	}
	return level, cleaned
}

// Stats returns a snapshot of the controller state.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Tier:         c.tier,
		SkipInterval: c.skip,
		FPS:          c.fps,
		MemoryLevel:  c.memoryLevel,
		Frames:       c.frames,
	}
}

func clampSkip(n int) int {
	return min(MaxSkipInterval, max(MinSkipInterval, n))
}
