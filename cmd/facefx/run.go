package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dudu/facefx/internal/camera"
	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/config"
	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/inference"
	"github.com/dudu/facefx/internal/pipeline"
	"github.com/dudu/facefx/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply a filter to the live camera feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd)
	},
}

func init() {
	runCmd.Flags().StringP("filter", "f", "", "Filter: "+fmt.Sprint(filter.Names()))
	runCmd.Flags().StringP("tier", "t", "", "Initial tier: auto, high, medium or low")
	runCmd.Flags().IntP("camera", "c", 0, "Camera device index (gocv backend)")
	runCmd.Flags().String("device", "", "Video device path (v4l2 backend)")
	runCmd.Flags().String("backend", "", "Camera backend: gocv or v4l2")
	runCmd.Flags().String("detector", "", "Detector: pigo or onnx")
	runCmd.Flags().Bool("preview", true, "Show preview window")

	overrides[runCmd] = func(cmd *cobra.Command, c *config.Config) error {
		f := cmd.Flags()
		if f.Changed("filter") {
			c.Filter, _ = f.GetString("filter")
		}
		if f.Changed("tier") {
			c.Tier, _ = f.GetString("tier")
		}
		if f.Changed("camera") {
			c.Camera.Index, _ = f.GetInt("camera")
		}
		if f.Changed("device") {
			c.Camera.Device, _ = f.GetString("device")
		}
		if f.Changed("backend") {
			c.Camera.Backend, _ = f.GetString("backend")
		}
		if f.Changed("detector") {
			c.Detector.Kind, _ = f.GetString("detector")
		}
		if f.Changed("preview") {
			c.Preview, _ = f.GetBool("preview")
		}
		return nil
	}
	rootCmd.AddCommand(runCmd)
}

func runLive(cmd *cobra.Command) error {
	ctx := cmd.Context()

	tier, err := resolveTier(ctx, cfg)
	if err != nil {
		logger.Warn("device probe failed, using default tier", "tier", tier.String(), "error", err)
	}

	det, shutdown, err := openDetector(cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	flt, err := filter.ByName(cfg.Filter, logger)
	if err != nil {
		det.Close()
		return err
	}

	loop, err := pipeline.New(pipeline.Config{
		Detector:   det,
		Filter:     flt,
		Controller: newController(tier, cfg),
		Resources:  inference.TensorCounter{},
		Logger:     logger,
	})
	if err != nil {
		det.Close()
		return fmt.Errorf("failed to create render loop: %w", err)
	}
	defer loop.Close()

	cam, err := camera.Open(camera.Config{
		Backend: camera.Backend(cfg.Camera.Backend),
		Index:   cfg.Camera.Index,
		Device:  cfg.Camera.Device,
		Width:   cfg.Camera.Width,
		Height:  cfg.Camera.Height,
		FPS:     cfg.Camera.FPS,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()
	logger.Info("camera opened", "width", cam.Width(), "height", cam.Height(),
		"filter", flt.Name(), "tier", tier.String())

	var sink pipeline.FrameSink = &logSink{logger: logger, every: 300}
	if cfg.Preview {
		window := ui.NewWindow("facefx")
		defer window.Close()
		window.OnQuit = loop.Stop
		sink = window
	}

	fmt.Println("Running... Press 'q' to quit")
	if err := loop.Run(ctx, cam, sink); err != nil {
		return err
	}
	logger.Info("stopped", "frames", loop.Controller().Stats().Frames)
	return nil
}

// logSink reports loop stats periodically when there is no preview window
type logSink struct {
	logger *slog.Logger
	every  int
}

func (s *logSink) Show(_ *canvas.Canvas, r pipeline.TickReport) error {
	if s.every > 0 && r.Frame%s.every == 0 {
		s.logger.Info("frame stats",
			"frame", r.Frame,
			"tier", r.Quality.Tier.String(),
			"skip", r.SkipInterval,
			"faces", r.Faces,
			"total", r.Timing.Total,
			"memory_level", r.MemoryLevel,
		)
	}
	return nil
}
