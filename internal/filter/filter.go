// Package filter defines the closed set of face filters the render loop can
// apply: the morph warp and the animated particle overlays.
package filter

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/morph"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

// Filter draws one face per call. The set of implementations is closed:
// *Morph and *Animated.
type Filter interface {
	Name() string
	Render(s render.Surface, face landmark.Set, vocab *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) render.Result
	isFilter()
}

// Morph applies the inverse warp.
type Morph struct {
	engine *morph.Engine
}

// NewMorph wraps an engine. A nil engine uses the per-tier defaults.
func NewMorph(e *morph.Engine) *Morph {
	if e == nil {
		e = morph.NewEngine()
	}
	return &Morph{engine: e}
}

// Name returns "morph".
func (m *Morph) Name() string { return MorphName }

// Render warps the face.
func (m *Morph) Render(s render.Surface, face landmark.Set, vocab *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) render.Result {
	return m.engine.Render(s, face, vocab, elapsed, q)
}

func (*Morph) isFilter()    {}
func (*Animated) isFilter() {}

// MorphName is the registry name of the morph filter.
const MorphName = "morph"

// ByName builds the filter registered under name. logger may be nil.
func ByName(name string, logger *slog.Logger) (Filter, error) {
	if name == MorphName {
		return NewMorph(morph.NewEngine(morph.WithLogger(logger))), nil
	}
	if p, ok := LookupPreset(name); ok {
		return NewAnimated(p, logger), nil
	}
	return nil, fmt.Errorf("unknown filter %q (available: %v)", name, Names())
}

// Names lists every registered filter name in sorted order.
func Names() []string {
	names := []string{MorphName}
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
