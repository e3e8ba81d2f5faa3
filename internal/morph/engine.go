package morph

import (
	"log/slog"
	"time"

	"github.com/dudu/facefx/internal/geometry"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

// Engine renders the morph warp. It keeps no per-frame state, so one engine
// may serve any number of faces and frames.
type Engine struct {
	params func(perf.Tier) Params
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams fixes the warp parameters regardless of tier.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = func(perf.Tier) Params { return p }
	}
}

// WithLogger sets the logger for per-face failures, reported at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// NewEngine creates a morph engine using the per-tier parameters.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{params: ParamsFor, logger: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render warps one face in place. A region with zero area is OK; a failed
// read or write leaves the region untouched and reports Degraded.
func (e *Engine) Render(s render.Surface, face landmark.Set, vocab *landmark.Vocabulary, _ time.Duration, q perf.Quality) render.Result {
	pts, ok := geometry.FacePoints(face, vocab)
	if !ok {
		return render.FaceInvalid
	}
	dims := geometry.FaceDimensions(pts)
	params := e.params(q.Tier)

	region := ComputeRegion(dims.EyeCenter, dims.Width, dims.Height, params, s.Width(), s.Height())
	if region.Empty() {
		return render.OK
	}

	src, err := s.ReadRegion(region)
	if err != nil {
		e.logger.Debug("morph read failed", "region", region, "error", err)
		return render.Degraded
	}

	warp := NewWarp(pts, params)
	out := make([]uint8, len(src))
	ox, oy := float64(region.X), float64(region.Y)
	for j := 0; j < region.Height; j++ {
		y := oy + float64(j)
		for i := 0; i < region.Width; i++ {
			sx, sy := warp.Inverse(ox+float64(i), y)
			px := geometry.BilinearSample(src, sx-ox, sy-oy, region.Width, region.Height)
			copy(out[(j*region.Width+i)*4:], px[:])
		}
	}

	if err := s.WriteRegion(region, out); err != nil {
		e.logger.Debug("morph write failed", "region", region, "error", err)
		return render.Degraded
	}
	return render.OK
}
