// Package perf adapts rendering quality to the host machine at run time.
//
// A Controller measures frame rate, decides which frames run face detection,
// smooths landmarks on skipped frames and throttles quality under memory
// pressure. Probe classifies a device once and caches the result.
package perf

import "fmt"

// Tier is a discrete quality level. Higher values are cheaper.
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierLow
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses a tier name as produced by String.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "high":
		return TierHigh, nil
	case "medium":
		return TierMedium, nil
	case "low":
		return TierLow, nil
	}
	return 0, fmt.Errorf("unknown performance tier %q", s)
}

// Lower returns the next cheaper tier. TierLow is the floor.
func (t Tier) Lower() Tier {
	if t >= TierLow {
		return TierLow
	}
	return t + 1
}

// Valid reports whether t is one of the three tiers.
func (t Tier) Valid() bool {
	return t >= TierHigh && t <= TierLow
}

// TierConfig is the quality bundle associated with a tier.
type TierConfig struct {
	MaxFaces            int
	SkipFrames          int
	ShadowBlur          int
	ParticleCount       int
	AnimationSpeed      float64
	CleanupInterval     int // frames between resource polls
	TargetFPS           float64
	DetectionConfidence float64
}

var tierConfigs = [...]TierConfig{
	TierHigh: {
		MaxFaces:            3,
		SkipFrames:          1,
		ShadowBlur:          10,
		ParticleCount:       10,
		AnimationSpeed:      1.0,
		CleanupInterval:     300,
		TargetFPS:           60,
		DetectionConfidence: 0.5,
	},
	TierMedium: {
		MaxFaces:            2,
		SkipFrames:          2,
		ShadowBlur:          5,
		ParticleCount:       6,
		AnimationSpeed:      0.8,
		CleanupInterval:     200,
		TargetFPS:           30,
		DetectionConfidence: 0.6,
	},
	TierLow: {
		MaxFaces:            1,
		SkipFrames:          3,
		ShadowBlur:          0,
		ParticleCount:       3,
		AnimationSpeed:      0.6,
		CleanupInterval:     100,
		TargetFPS:           20,
		DetectionConfidence: 0.7,
	},
}

// Config returns the quality bundle of t. Out of range tiers map to TierLow.
func (t Tier) Config() TierConfig {
	if !t.Valid() {
		return tierConfigs[TierLow]
	}
	return tierConfigs[t]
}
