package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

// Config holds loop configuration
type Config struct {
	Detector   Detector
	Filter     filter.Filter
	Controller *perf.Controller
	// Resources is polled every CleanupInterval frames. Optional.
	Resources ResourceCounter
	Logger    *slog.Logger
	// Clock is used by Run. Defaults to time.Now.
	Clock func() time.Time
}

// Timing holds performance timing information
type Timing struct {
	Detection     time.Duration
	Interpolation time.Duration
	Render        time.Duration
	Total         time.Duration
}

// TickReport describes one processed frame
type TickReport struct {
	Frame     int
	Detected  bool // detection ran (as opposed to interpolation)
	Discarded bool // the loop was stopped while detecting
	Faces     int  // faces rendered
	Results   render.Counts
	Quality   perf.Quality
	// SkipInterval is the controller's detection interval after this tick.
	// It can exceed Quality.SkipFrames once slow frames have been sampled.
	SkipInterval int
	Elapsed      time.Duration
	// DetectErr is the detector failure, if any. The tick still completes.
	DetectErr   error
	MemoryLevel int
	Cleaned     bool
	Timing      Timing
}

// Loop runs detection, interpolation and filtering frame by frame
type Loop struct {
	config Config
	logger *slog.Logger

	counter    int
	start      time.Time
	lastTiming Timing

	stopped    atomic.Bool
	generation atomic.Uint64
}

// New creates a render loop
func New(config Config) (*Loop, error) {
	if config.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if config.Filter == nil {
		return nil, errors.New("pipeline: filter is required")
	}
	if config.Controller == nil {
		config.Controller = perf.New(perf.TierMedium)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Loop{config: config, logger: logging.OrNop(config.Logger)}, nil
}

// Controller returns the performance controller driving the loop
func (l *Loop) Controller() *perf.Controller {
	return l.config.Controller
}

// Tick processes one frame in place. Detection runs on frames the controller
// does not skip; other frames use interpolated landmarks. Per-face failures
// are counted, not returned.
func (l *Loop) Tick(ctx context.Context, frame *canvas.Canvas, now time.Time) TickReport {
	totalStart := time.Now()
	ctrl := l.config.Controller

	if l.start.IsZero() {
		l.start = now
	}
	l.counter++
	report := TickReport{Frame: l.counter, Elapsed: now.Sub(l.start)}
	generation := l.generation.Load()

	// Detect or interpolate
	var snap landmark.Snapshot
	if !ctrl.ShouldSkipFrame(l.counter) {
		report.Detected = true
		minConf := ctrl.QualitySettings().DetectionConfidence

		detectStart := time.Now()
		detected, err := l.config.Detector.Detect(ctx, frame.RGBA(), minConf)
		report.Timing.Detection = time.Since(detectStart)

		if l.stopped.Load() || l.generation.Load() != generation {
			report.Discarded = true
			report.Timing.Total = time.Since(totalStart)
			return report
		}
		if err != nil {
			l.logger.Debug("detection failed", "frame", l.counter, "error", err)
			report.DetectErr = err
			detected = landmark.Snapshot{}
		}
		ctrl.Detected(detected)
		snap = detected
	} else {
		interpStart := time.Now()
		snap = ctrl.Interpolated()
		report.Timing.Interpolation = time.Since(interpStart)
	}

	// Quality settings
	q := ctrl.QualitySettings()
	report.Quality = q

	// Render each face
	renderStart := time.Now()
	faces := snap.Faces
	if len(faces) > q.MaxFaces {
		faces = faces[:q.MaxFaces]
	}
	for i, face := range faces {
		result := l.renderFace(frame, face, snap.Vocabulary, report.Elapsed, q)
		report.Results.Add(result)
		if result != render.OK {
			l.logger.Debug("face not rendered", "frame", l.counter, "face", i, "result", result.String())
		}
	}
	report.Faces = len(faces)
	report.Timing.Render = time.Since(renderStart)

	// Memory pressure
	if l.config.Resources != nil && q.CleanupInterval > 0 && l.counter%q.CleanupInterval == 0 {
		report.MemoryLevel, report.Cleaned = ctrl.UpdateMemoryPressure(l.config.Resources.LiveResources())
	} else {
		report.MemoryLevel = q.MemoryLevel
	}

	ctrl.RecordFrame(now)
	report.SkipInterval = ctrl.SkipInterval()

	report.Timing.Total = time.Since(totalStart)
	l.lastTiming = report.Timing
	return report
}

// renderFace runs the filter on one face. A panic inside the filter or the
// surface counts as Degraded so the remaining faces and frames still render.
func (l *Loop) renderFace(frame *canvas.Canvas, face landmark.Set, vocab *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) (result render.Result) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Debug("filter panicked", "frame", l.counter, "panic", r)
			result = render.Degraded
		}
	}()
	return l.config.Filter.Render(frame, face, vocab, elapsed, q)
}

// Run reads frames from src, ticks and hands them to sink until the context
// ends, Stop is called or src reports ErrEndOfStream.
func (l *Loop) Run(ctx context.Context, src FrameSource, sink FrameSink) error {
	for {
		if l.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := src.Read(ctx)
		if errors.Is(err, ErrEndOfStream) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		report := l.Tick(ctx, frame, l.config.Clock())
		if report.Discarded {
			return nil
		}
		if sink != nil {
			if err := sink.Show(frame, report); err != nil {
				return fmt.Errorf("failed to show frame: %w", err)
			}
		}
	}
}

// Stop prevents further ticks. A detection in flight completes but its
// result is dropped. Safe to call from any goroutine.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.generation.Inc()
}

// Stopped reports whether Stop has been called
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// LastTiming returns timing from the last completed Tick
func (l *Loop) LastTiming() Timing {
	return l.lastTiming
}

// Close releases loop resources
func (l *Loop) Close() error {
	var errs []error

	if l.config.Detector != nil {
		if err := l.config.Detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
