package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/dudu/facefx/internal/canvas"
	"github.com/dudu/facefx/internal/config"
	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/render"
)

var stillOpts struct {
	landmarks string
	detect    bool
	width     int
	elapsed   time.Duration
	dump      string
}

var stillCmd = &cobra.Command{
	Use:   "still <input> <output>",
	Short: "Apply a filter to a PNG or JPEG image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStill(cmd.Context(), args[0], args[1])
	},
}

func init() {
	f := stillCmd.Flags()
	f.StringVarP(&stillOpts.landmarks, "landmarks", "l", "", "Landmarks JSON file")
	f.BoolVar(&stillOpts.detect, "detect", false, "Detect faces instead of reading landmarks")
	f.IntVar(&stillOpts.width, "width", 0, "Resize to this width before rendering")
	f.DurationVar(&stillOpts.elapsed, "elapsed", 0, "Animation time for animated filters")
	f.StringVar(&stillOpts.dump, "dump-landmarks", "", "Write the landmarks used to this JSON file")
	f.StringP("filter", "f", "", "Filter: "+fmt.Sprint(filter.Names()))
	f.StringP("tier", "t", "high", "Quality tier: high, medium or low")
	f.String("detector", "", "Detector: pigo or onnx")

	overrides[stillCmd] = func(cmd *cobra.Command, c *config.Config) error {
		f := cmd.Flags()
		if f.Changed("filter") {
			c.Filter, _ = f.GetString("filter")
		}
		if f.Changed("detector") {
			c.Detector.Kind, _ = f.GetString("detector")
		}
		// auto makes no sense for a single frame
		c.Tier, _ = f.GetString("tier")
		return nil
	}
	rootCmd.AddCommand(stillCmd)
}

func runStill(ctx context.Context, input, output string) error {
	if stillOpts.detect == (stillOpts.landmarks != "") {
		return errors.New("exactly one of --landmarks or --detect is required")
	}
	format, err := imageFormat(output)
	if err != nil {
		return err
	}

	tier, err := perf.ParseTier(cfg.Tier)
	if err != nil {
		return err
	}
	q := perf.Quality{TierConfig: tier.Config(), Tier: tier}

	src, err := gg.LoadImage(input)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", input, err)
	}
	frame := toCanvas(src, stillOpts.width)

	var snap landmark.Snapshot
	if stillOpts.detect {
		snap, err = detectStill(ctx, frame, q.DetectionConfidence)
	} else {
		snap, err = readLandmarks(stillOpts.landmarks)
		if err == nil && stillOpts.width > 0 {
			snap = scaleSnapshot(snap, float64(frame.Width())/float64(src.Bounds().Dx()))
		}
	}
	if err != nil {
		return err
	}
	logger.Debug("landmarks ready", "faces", len(snap.Faces), "width", frame.Width(), "height", frame.Height())

	if stillOpts.dump != "" {
		if err := writeLandmarks(stillOpts.dump, snap); err != nil {
			return err
		}
	}

	flt, err := filter.ByName(cfg.Filter, logger)
	if err != nil {
		return err
	}

	var counts render.Counts
	faces := snap.Faces
	if len(faces) > q.MaxFaces {
		faces = faces[:q.MaxFaces]
	}
	for i, face := range faces {
		result := flt.Render(frame, face, snap.Vocabulary, stillOpts.elapsed, q)
		counts.Add(result)
		if result != render.OK {
			logger.Warn("face not rendered", "face", i, "result", result.String())
		}
	}

	if err := saveImage(output, format, frame.RGBA()); err != nil {
		return err
	}
	fmt.Printf("%s: %d faces (ok=%d degraded=%d invalid=%d) -> %s\n",
		flt.Name(), len(faces), counts.OK, counts.Degraded, counts.Invalid, output)
	return nil
}

func detectStill(ctx context.Context, frame *canvas.Canvas, minConf float64) (landmark.Snapshot, error) {
	det, shutdown, err := openDetector(cfg)
	if err != nil {
		return landmark.Snapshot{}, err
	}
	defer shutdown()
	defer det.Close()

	snap, err := det.Detect(ctx, frame.RGBA(), minConf)
	if err != nil {
		return landmark.Snapshot{}, fmt.Errorf("detection failed: %w", err)
	}
	return snap, nil
}

// toCanvas copies src into a canvas, scaling to width when it is positive
// and differs from the source width.
func toCanvas(src image.Image, width int) *canvas.Canvas {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if width > 0 && width != w {
		h = max(1, h*width/w)
		w = width
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return canvas.FromRGBA(dst)
}

// scaleSnapshot multiplies every coordinate by factor. Depth scales too so
// it stays proportional to face size.
func scaleSnapshot(s landmark.Snapshot, factor float64) landmark.Snapshot {
	out := s.Clone()
	for _, face := range out.Faces {
		for j := range face {
			face[j] = face[j].Mul(factor)
		}
	}
	return out
}

func readLandmarks(path string) (landmark.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return landmark.Snapshot{}, err
	}
	defer f.Close()
	return landmark.Decode(f)
}

func writeLandmarks(path string, s landmark.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := landmark.Encode(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// imageFormat picks the encoder from the output extension.
func imageFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use .png or .jpg)", filepath.Ext(path))
	}
}

func saveImage(path, format string, img image.Image) error {
	if format == "png" {
		return gg.SavePNG(path, img)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 92}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
