package perf

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/dudu/facefx/internal/logging"
)

const (
	// ProbeIterations is the size of the fixed benchmark workload.
	ProbeIterations = 2_000_000
	// RecordValidity is how long a cached classification is trusted.
	RecordValidity = 24 * time.Hour
)

// Duration thresholds separating High/Medium and Medium/Low.
var (
	desktopThresholds = [2]time.Duration{40 * time.Millisecond, 120 * time.Millisecond}
	mobileThresholds  = [2]time.Duration{80 * time.Millisecond, 200 * time.Millisecond}
)

// Record is one persisted device classification.
type Record struct {
	Signature  string
	Tier       Tier
	Duration   time.Duration
	MeasuredAt time.Time
}

// ValidAt reports whether r may be reused for signature at now.
func (r Record) ValidAt(signature string, now time.Time) bool {
	if r.Signature != signature || !r.Tier.Valid() {
		return false
	}
	age := now.Sub(r.MeasuredAt)
	return age >= 0 && age < RecordValidity
}

// ProbeCache persists classification records keyed by device signature.
type ProbeCache interface {
	Load(ctx context.Context, signature string) (Record, bool, error)
	Save(ctx context.Context, r Record) error
}

// ProbeResult is the outcome of Probe.
type ProbeResult struct {
	Record
	FromCache bool
}

// Workload runs the benchmark and returns its wall-clock duration.
type Workload func(ctx context.Context) (time.Duration, error)

type probeConfig struct {
	workload Workload
	logger   *slog.Logger
}

// ProbeOption configures Probe.
type ProbeOption func(*probeConfig)

// WithWorkload replaces the default numeric benchmark.
func WithWorkload(w Workload) ProbeOption {
	return func(c *probeConfig) { c.workload = w }
}

// WithProbeLogger sets the logger used for cache problems and results.
func WithProbeLogger(l *slog.Logger) ProbeOption {
	return func(c *probeConfig) { c.logger = logging.OrNop(l) }
}

// Probe returns the tier for capability, consulting cache first. A nil cache
// always measures. Cache failures are logged and do not fail the probe; only
// a cancelled context does.
func Probe(ctx context.Context, capability Capability, cache ProbeCache, now time.Time, opts ...ProbeOption) (ProbeResult, error) {
	cfg := probeConfig{workload: RunWorkload, logger: logging.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	sig := capability.Signature()
	if cache != nil {
		rec, ok, err := cache.Load(ctx, sig)
		switch {
		case err != nil:
			cfg.logger.Warn("probe cache load failed", "error", err)
		case ok && rec.ValidAt(sig, now):
			cfg.logger.Debug("using cached device tier", "tier", rec.Tier.String(), "measured_at", rec.MeasuredAt)
			return ProbeResult{Record: rec, FromCache: true}, nil
		}
	}

	d, err := cfg.workload(ctx)
	if err != nil {
		return ProbeResult{}, err
	}

	tier := Classify(d, capability.Mobile)
	if capability.Constrained {
		tier = tier.Lower()
	}
	rec := Record{Signature: sig, Tier: tier, Duration: d, MeasuredAt: now}
	cfg.logger.Info("device probed", "tier", tier.String(), "duration", d, "mobile", capability.Mobile, "constrained", capability.Constrained)

	if cache != nil {
		if err := cache.Save(ctx, rec); err != nil {
			cfg.logger.Warn("probe cache save failed", "error", err)
		}
	}
	return ProbeResult{Record: rec}, nil
}

// Classify maps a workload duration to a tier using the mobile or desktop
// thresholds.
func Classify(d time.Duration, mobile bool) Tier {
	th := desktopThresholds
	if mobile {
		th = mobileThresholds
	}
	switch {
	case d < th[0]:
		return TierHigh
	case d < th[1]:
		return TierMedium
	default:
		return TierLow
	}
}

// probeSink keeps the workload result observable so it is not optimised away.
var probeSink float64

// RunWorkload executes ProbeIterations iterations of mixed floating point
// math and reports how long it took.
func RunWorkload(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var acc float64
	for i := 0; i < ProbeIterations; i++ {
		if i%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		f := float64(i)
		acc += math.Sqrt(f) * math.Sin(f)
	}
	probeSink = acc
	return time.Since(start), nil
}
