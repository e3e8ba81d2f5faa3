package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

// fakeDetector returns scripted snapshots, one per call. A nil entry in errs
// means success.
type fakeDetector struct {
	snaps  []landmark.Snapshot
	errs   []error
	calls  int
	confs  []float64
	onCall func()
	closed bool
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image, minConf float64) (landmark.Snapshot, error) {
	i := f.calls
	f.calls++
	f.confs = append(f.confs, minConf)
	if f.onCall != nil {
		f.onCall()
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return landmark.Snapshot{}, err
	}
	if len(f.snaps) == 0 {
		return landmark.Snapshot{}, nil
	}
	return f.snaps[min(i, len(f.snaps)-1)], nil
}

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

// recordingFilter counts render calls and returns a fixed result.
type recordingFilter struct {
	filter.Filter
	faces     []landmark.Set
	elapsed   []time.Duration
	qualities []perf.Quality
	result    render.Result
}

func (r *recordingFilter) Render(_ render.Surface, face landmark.Set, _ *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) render.Result {
	r.faces = append(r.faces, face)
	r.elapsed = append(r.elapsed, elapsed)
	r.qualities = append(r.qualities, q)
	return r.result
}

func face(cx float64) landmark.Set {
	return landmark.FrontalLayout(cx, 200, 100).Set(landmark.Compact)
}

func snapshot(faces ...landmark.Set) landmark.Snapshot {
	return landmark.Snapshot{Vocabulary: landmark.Compact, Faces: faces}
}

func newLoop(t *testing.T, det Detector, f filter.Filter, ctrl *perf.Controller, res ResourceCounter) *Loop {
	t.Helper()
	l, err := New(Config{Detector: det, Filter: f, Controller: ctrl, Resources: res})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

var epoch = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Filter: filter.NewMorph(nil)}); err == nil {
		t.Error("New without detector succeeded")
	}
	if _, err := New(Config{Detector: &fakeDetector{}}); err == nil {
		t.Error("New without filter succeeded")
	}
}

func TestTickDetectsOnScheduleAndInterpolatesOtherwise(t *testing.T) {
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(200)), snapshot(face(300))}}
	rec := &recordingFilter{}
	l := newLoop(t, det, rec, perf.New(perf.TierLow), nil) // skip interval 3
	c := canvas.New(640, 480)

	var detected []bool
	for i := 0; i < 6; i++ {
		r := l.Tick(context.Background(), c, epoch.Add(time.Duration(i)*50*time.Millisecond))
		detected = append(detected, r.Detected)
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if detected[i] != want[i] {
			t.Fatalf("detected = %v; want %v", detected, want)
		}
	}
	if det.calls != 2 {
		t.Errorf("detector calls = %d; want 2", det.calls)
	}
	if det.confs[0] != 0.7 {
		t.Errorf("min confidence = %v; want low tier 0.7", det.confs[0])
	}
	// Frames 1 and 2 have nothing cached; frame 3 renders its detection and
	// interpolated frames 4 and 5 keep the face.
	if len(rec.faces) != 4 {
		t.Errorf("rendered faces = %d; want 4", len(rec.faces))
	}
}

func TestSkippedFramesBlendTowardNewDetection(t *testing.T) {
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(200)), snapshot(face(300))}}
	rec := &recordingFilter{}
	l := newLoop(t, det, rec, perf.New(perf.TierLow), nil) // detects on frames 3 and 6
	c := canvas.New(640, 480)

	for i := 0; i < 8; i++ {
		l.Tick(context.Background(), c, epoch.Add(time.Duration(i)*50*time.Millisecond))
	}
	if len(rec.faces) != 6 {
		t.Fatalf("rendered faces = %d; want 6 (frames 3-8)", len(rec.faces))
	}

	// Frame 6 renders its detection as is; the skipped frames after it lag
	// behind, closing 0.3 of the remaining gap per frame.
	want := []float64{200, 200, 200, 300, 230, 251}
	for i, w := range want {
		got := rec.faces[i][landmark.CompactNoseTip].X
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("frame %d nose X = %v; want %v", i+3, got, w)
		}
	}
}

// panicFilter panics on its first render call.
type panicFilter struct {
	recordingFilter
	calls int
}

func (p *panicFilter) Render(s render.Surface, face landmark.Set, v *landmark.Vocabulary, elapsed time.Duration, q perf.Quality) render.Result {
	p.calls++
	if p.calls == 1 {
		panic("glyph cache corrupted")
	}
	return p.recordingFilter.Render(s, face, v, elapsed, q)
}

func TestTickSurvivesFilterPanic(t *testing.T) {
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(150), face(450))}}
	pf := &panicFilter{}
	ctrl := perf.New(perf.TierHigh)
	l := newLoop(t, det, pf, ctrl, nil)

	r := l.Tick(context.Background(), canvas.New(640, 480), epoch)
	if r.Faces != 2 || r.Results.Degraded != 1 || r.Results.OK != 1 {
		t.Errorf("report = faces %d, results %+v; want 2 faces, 1 degraded, 1 ok", r.Faces, r.Results)
	}
	if len(pf.faces) != 1 || pf.faces[0][landmark.CompactNoseTip].X != 450 {
		t.Error("face after the panic was not rendered")
	}
	if ctrl.Stats().Frames != 1 {
		t.Error("tick did not complete after the panic")
	}
}

func TestTickReportsDynamicSkipInterval(t *testing.T) {
	ctrl := perf.New(perf.TierLow)
	l := newLoop(t, &fakeDetector{}, &recordingFilter{}, ctrl, nil)
	c := canvas.New(64, 64)

	var last TickReport
	for i := 0; i < perf.SampleEvery; i++ { // 10 fps, below the low tier target
		last = l.Tick(context.Background(), c, epoch.Add(time.Duration(i)*100*time.Millisecond))
	}
	if last.SkipInterval != 4 || last.Quality.SkipFrames != 3 {
		t.Errorf("skip interval %d, tier skip %d; want 4 and 3", last.SkipInterval, last.Quality.SkipFrames)
	}
	if ctrl.Stats().SkipInterval != last.SkipInterval {
		t.Errorf("report skip %d != controller skip %d", last.SkipInterval, ctrl.Stats().SkipInterval)
	}
	if l.LastTiming() != last.Timing {
		t.Errorf("LastTiming() = %+v; want %+v", l.LastTiming(), last.Timing)
	}
}

func TestTickPassesElapsedTime(t *testing.T) {
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(300))}}
	rec := &recordingFilter{}
	l := newLoop(t, det, rec, perf.New(perf.TierHigh), nil)
	c := canvas.New(640, 480)

	l.Tick(context.Background(), c, epoch)
	r := l.Tick(context.Background(), c, epoch.Add(1500*time.Millisecond))
	if r.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v; want 1.5s", r.Elapsed)
	}
	if rec.elapsed[0] != 0 || rec.elapsed[1] != 1500*time.Millisecond {
		t.Errorf("filter elapsed = %v; want [0 1.5s]", rec.elapsed)
	}
}

func TestTickDetectionErrorMeansNoFaces(t *testing.T) {
	det := &fakeDetector{
		snaps: []landmark.Snapshot{snapshot(face(300))},
		errs:  []error{nil, errors.New("model hiccup"), nil},
	}
	rec := &recordingFilter{}
	l := newLoop(t, det, rec, perf.New(perf.TierHigh), nil)
	c := canvas.New(640, 480)

	counts := []int{}
	for i := 0; i < 3; i++ {
		r := l.Tick(context.Background(), c, epoch.Add(time.Duration(i)*time.Second/60))
		counts = append(counts, r.Faces)
		if i == 1 && r.DetectErr == nil {
			t.Error("DetectErr not reported")
		}
	}
	if counts[0] != 1 || counts[1] != 0 || counts[2] != 1 {
		t.Errorf("faces per tick = %v; want [1 0 1]", counts)
	}
}

func TestTickCapsFacesAndCountsResults(t *testing.T) {
	bad := face(100)[:4]
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(100), bad, face(500), face(300))}}
	l := newLoop(t, det, filter.NewMorph(nil), perf.New(perf.TierHigh), nil) // max 3 faces
	c := canvas.New(640, 480)

	r := l.Tick(context.Background(), c, epoch)
	if r.Faces != 3 {
		t.Errorf("faces rendered = %d; want 3", r.Faces)
	}
	if r.Results.Invalid != 1 || r.Results.OK != 2 {
		t.Errorf("results = %+v; want 2 ok, 1 invalid", r.Results)
	}
}

func TestStopDuringDetectionDiscardsResult(t *testing.T) {
	det := &fakeDetector{snaps: []landmark.Snapshot{snapshot(face(300))}}
	rec := &recordingFilter{}
	ctrl := perf.New(perf.TierHigh)
	l := newLoop(t, det, rec, ctrl, nil)
	det.onCall = l.Stop

	r := l.Tick(context.Background(), canvas.New(640, 480), epoch)
	if !r.Discarded {
		t.Fatal("tick after stop was not discarded")
	}
	if !ctrl.Cached().Empty() {
		t.Error("discarded detection was cached")
	}
	if len(rec.faces) != 0 {
		t.Error("discarded detection was rendered")
	}
	if ctrl.Stats().Frames != 0 {
		t.Error("discarded tick was recorded as a frame")
	}
}

func TestMemoryPressurePolledOnCleanupInterval(t *testing.T) {
	polls := 0
	res := ResourceCounterFunc(func() int {
		polls++
		return 5000
	})
	cleaned := 0
	ctrl := perf.New(perf.TierLow, perf.WithCleaner(perf.CleanerFunc(func() { cleaned++ })))
	l := newLoop(t, &fakeDetector{}, &recordingFilter{}, ctrl, res)
	c := canvas.New(64, 64)

	var last TickReport
	for i := 0; i < 100; i++ { // low tier cleanup interval is 100
		last = l.Tick(context.Background(), c, epoch.Add(time.Duration(i)*time.Millisecond*50))
	}
	if polls != 1 || cleaned != 1 || !last.Cleaned || last.MemoryLevel != 2 {
		t.Errorf("polls %d, cleaned %d, report %+v; want one poll and cleanup at level 2", polls, cleaned, last)
	}
	if q := ctrl.QualitySettings(); q.ParticleCount != 1 || q.SkipFrames != 5 {
		t.Errorf("quality under pressure = %+v", q.TierConfig)
	}
}

type sliceSource struct {
	frames int
	read   int
}

func (s *sliceSource) Read(context.Context) (*canvas.Canvas, error) {
	if s.read >= s.frames {
		return nil, ErrEndOfStream
	}
	s.read++
	return canvas.New(32, 32), nil
}

type countingSink struct {
	shown  int
	stopAt int
	loop   *Loop
}

func (s *countingSink) Show(*canvas.Canvas, TickReport) error {
	s.shown++
	if s.shown == s.stopAt {
		s.loop.Stop()
	}
	return nil
}

func TestRunStopsAtEndOfStream(t *testing.T) {
	det := &fakeDetector{}
	l := newLoop(t, det, &recordingFilter{}, perf.New(perf.TierHigh), nil)
	sink := &countingSink{}
	if err := l.Run(context.Background(), &sliceSource{frames: 7}, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.shown != 7 {
		t.Errorf("shown = %d; want 7", sink.shown)
	}
}

func TestRunStopCancelsNextTick(t *testing.T) {
	l := newLoop(t, &fakeDetector{}, &recordingFilter{}, perf.New(perf.TierHigh), nil)
	sink := &countingSink{stopAt: 3, loop: l}
	src := &sliceSource{frames: 100}
	if err := l.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.shown != 3 || src.read != 3 {
		t.Errorf("shown %d, read %d; want 3 and 3", sink.shown, src.read)
	}
	if !l.Stopped() {
		t.Error("Stopped() = false")
	}
}

func TestRunContextCancel(t *testing.T) {
	l := newLoop(t, &fakeDetector{}, &recordingFilter{}, perf.New(perf.TierHigh), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &sliceSource{frames: 10}
	if err := l.Run(ctx, src, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.read != 0 {
		t.Errorf("read %d frames after cancel; want 0", src.read)
	}
}

type brokenSource struct{}

func (brokenSource) Read(context.Context) (*canvas.Canvas, error) {
	return nil, errors.New("camera unplugged")
}

func TestRunPropagatesSourceError(t *testing.T) {
	l := newLoop(t, &fakeDetector{}, &recordingFilter{}, perf.New(perf.TierHigh), nil)
	if err := l.Run(context.Background(), brokenSource{}, nil); err == nil {
		t.Error("Run() error = nil; want source error")
	}
}

func TestCloseClosesDetector(t *testing.T) {
	det := &fakeDetector{}
	l := newLoop(t, det, &recordingFilter{}, nil, nil)
	if err := l.Close(); err != nil || !det.closed {
		t.Errorf("Close() = %v, closed %v", err, det.closed)
	}
}
