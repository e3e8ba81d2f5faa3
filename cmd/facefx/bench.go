package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/config"
	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/pipeline"
	"github.com/dudu/facefx/internal/render"
)

var benchOpts struct {
	frames int
	width  int
	height int
	faces  int
	delay  time.Duration
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run synthetic frames through the render loop and report throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context())
	},
}

func init() {
	f := benchCmd.Flags()
	f.IntVarP(&benchOpts.frames, "frames", "n", 600, "Number of frames")
	f.IntVar(&benchOpts.width, "width", 1280, "Frame width")
	f.IntVar(&benchOpts.height, "height", 720, "Frame height")
	f.IntVar(&benchOpts.faces, "faces", 1, "Synthetic faces per frame")
	f.DurationVar(&benchOpts.delay, "detect-delay", 0, "Simulated detector latency")
	f.StringP("filter", "f", "", "Filter: "+fmt.Sprint(filter.Names()))
	f.StringP("tier", "t", "", "Initial tier: auto, high, medium or low")

	overrides[benchCmd] = func(cmd *cobra.Command, c *config.Config) error {
		f := cmd.Flags()
		if f.Changed("filter") {
			c.Filter, _ = f.GetString("filter")
		}
		if f.Changed("tier") {
			c.Tier, _ = f.GetString("tier")
		}
		return nil
	}
	rootCmd.AddCommand(benchCmd)
}

func runBench(ctx context.Context) error {
	if benchOpts.frames <= 0 || benchOpts.width <= 0 || benchOpts.height <= 0 {
		return fmt.Errorf("frames, width and height must be positive")
	}

	runID := uuid.New()
	log := logger.With("run", runID.String())

	tier, err := resolveTier(ctx, cfg)
	if err != nil {
		log.Warn("device probe failed, using default tier", "tier", tier.String(), "error", err)
	}

	flt, err := filter.ByName(cfg.Filter, log)
	if err != nil {
		return err
	}

	det := &scriptedDetector{
		width:  float64(benchOpts.width),
		height: float64(benchOpts.height),
		faces:  benchOpts.faces,
		delay:  benchOpts.delay,
	}
	loop, err := pipeline.New(pipeline.Config{
		Detector:   det,
		Filter:     flt,
		Controller: newController(tier, cfg),
		Logger:     log,
	})
	if err != nil {
		return err
	}
	defer loop.Close()

	bar := progressbar.NewOptions(benchOpts.frames,
		progressbar.OptionSetDescription("facefx bench"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	src := newSyntheticSource(benchOpts.width, benchOpts.height, benchOpts.frames)
	sink := &benchSink{bar: bar}

	log.Info("bench started", "frames", benchOpts.frames, "filter", flt.Name(), "tier", tier.String())
	start := time.Now()
	if err := loop.Run(ctx, src, sink); err != nil {
		return err
	}
	bar.Finish()
	elapsed := time.Since(start)

	stats := loop.Controller().Stats()
	fmt.Fprintln(os.Stderr)
	fmt.Printf("Run:        %s\n", runID)
	fmt.Printf("Frames:     %d in %v (%.1f fps)\n", sink.frames, elapsed.Round(time.Millisecond), float64(sink.frames)/elapsed.Seconds())
	fmt.Printf("Detections: %d\n", det.calls)
	fmt.Printf("Tier:       %s -> %s\n", tier, stats.Tier)
	fmt.Printf("Skip:       %d\n", stats.SkipInterval)
	last := loop.LastTiming()
	fmt.Printf("Last tick:  detect %v, interp %v, render %v, total %v\n",
		last.Detection, last.Interpolation, last.Render, last.Total)
	fmt.Printf("Faces:      ok=%d degraded=%d invalid=%d\n", sink.results.OK, sink.results.Degraded, sink.results.Invalid)
	for t := perf.TierHigh; t <= perf.TierLow; t++ {
		if n := sink.tiers[t]; n > 0 {
			fmt.Printf("  %-8s %d frames\n", t.String()+":", n)
		}
	}
	return nil
}

// scriptedDetector places faces on a slow circular path so interpolated
// frames have something to interpolate.
type scriptedDetector struct {
	width, height float64
	faces         int
	delay         time.Duration
	calls         int
}

func (d *scriptedDetector) Detect(ctx context.Context, _ image.Image, _ float64) (landmark.Snapshot, error) {
	d.calls++
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return landmark.Snapshot{}, ctx.Err()
		case <-t.C:
		}
	}

	snap := landmark.Snapshot{Vocabulary: landmark.Compact}
	for i := 0; i < d.faces; i++ {
		snap.Faces = append(snap.Faces, d.layout(i).Set(landmark.Compact))
	}
	return snap, nil
}

// layout returns face i at the current step. Faces share the frame in
// equal-width columns.
func (d *scriptedDetector) layout(i int) landmark.Layout {
	col := d.width / float64(d.faces)
	eyeDist := math.Min(col, d.height) / 4
	angle := float64(d.calls) * 0.05
	radius := eyeDist / 4
	cx := col*(float64(i)+0.5) + radius*math.Cos(angle)
	cy := d.height*0.4 + radius*math.Sin(angle)
	return landmark.FrontalLayout(cx, cy, eyeDist)
}

func (d *scriptedDetector) Close() error { return nil }

// syntheticSource serves a fixed number of flat grey frames.
type syntheticSource struct {
	frame     *canvas.Canvas
	remaining int
}

func newSyntheticSource(width, height, frames int) *syntheticSource {
	return &syntheticSource{frame: canvas.New(width, height), remaining: frames}
}

func (s *syntheticSource) Read(ctx context.Context) (*canvas.Canvas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.remaining <= 0 {
		return nil, pipeline.ErrEndOfStream
	}
	s.remaining--
	// Filters draw in place, so reset the frame each time.
	img := s.frame.RGBA()
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 128, G: 120, B: 112, A: 255}), image.Point{}, draw.Src)
	return s.frame, nil
}

type benchSink struct {
	bar     *progressbar.ProgressBar
	frames  int
	results render.Counts
	tiers   map[perf.Tier]int
}

func (s *benchSink) Show(_ *canvas.Canvas, r pipeline.TickReport) error {
	s.frames++
	s.results.OK += r.Results.OK
	s.results.Degraded += r.Results.Degraded
	s.results.Invalid += r.Results.Invalid
	if s.tiers == nil {
		s.tiers = make(map[perf.Tier]int)
	}
	s.tiers[r.Quality.Tier]++
	if s.bar != nil {
		return s.bar.Add(1)
	}
	return nil
}
