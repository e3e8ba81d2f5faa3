package detector

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	pigo "github.com/esimov/pigo/core"
	"golang.org/x/image/draw"

	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
)

// PigoConfig configures the pure Go cascade detector
type PigoConfig struct {
	// CascadeDir holds facefinder, puploc and the lps directory of landmark
	// cascades, as shipped with pigo.
	CascadeDir string

	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// MaxWidth downscales wider frames before detection. 0 disables.
	MaxWidth int
	// QualityScale maps a [0,1] confidence onto pigo's detection score.
	QualityScale float64

	Logger *slog.Logger
}

// DefaultPigoConfig returns the settings used by the pigo examples, tuned
// for webcam frames.
func DefaultPigoConfig(cascadeDir string) PigoConfig {
	return PigoConfig{
		CascadeDir:   cascadeDir,
		MinSize:      60,
		MaxSize:      600,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		MaxWidth:     640,
		QualityScale: 7,
	}
}

const (
	pupilPerturbs = 63
	mouthCascade  = "lp84"
)

// Pigo detects faces, pupils and mouth corners with pigo cascades. It needs
// no native libraries.
type Pigo struct {
	cfg    PigoConfig
	face   *pigo.Pigo
	pupil  *pigo.PuplocCascade
	lps    map[string][]*pigo.FlpCascade
	logger *slog.Logger
}

// NewPigo unpacks the cascades under cfg.CascadeDir. The landmark cascades
// are optional; without them mouth corners are estimated.
func NewPigo(cfg PigoConfig) (*Pigo, error) {
	data, err := os.ReadFile(filepath.Join(cfg.CascadeDir, "facefinder"))
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	face, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(cfg.CascadeDir, "puploc"))
	if err != nil {
		return nil, fmt.Errorf("failed to read pupil cascade: %w", err)
	}
	pupil, err := pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pupil cascade: %w", err)
	}

	logger := logging.OrNop(cfg.Logger)
	lps, err := pupil.ReadCascadeDir(filepath.Join(cfg.CascadeDir, "lps"))
	if err != nil {
		logger.Warn("landmark cascades unavailable, estimating mouth", "error", err)
		lps = nil
	}

	return &Pigo{cfg: cfg, face: face, pupil: pupil, lps: lps, logger: logger}, nil
}

// Detect runs the face cascade and localises eyes and mouth on each hit.
func (p *Pigo) Detect(ctx context.Context, img image.Image, minConfidence float64) (landmark.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Snapshot{}, err
	}

	src, scale := p.downscale(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	dets := p.face.RunCascade(pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     p.cfg.MaxSize,
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = p.face.ClusterDetections(dets, 0.2)

	threshold := float32(minConfidence * p.cfg.QualityScale)
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Q > dets[j].Q })

	snap := landmark.Snapshot{Vocabulary: landmark.Compact}
	for _, det := range dets {
		if det.Q < threshold {
			continue
		}
		if err := ctx.Err(); err != nil {
			return landmark.Snapshot{}, err
		}
		layout := p.locate(det, params)
		snap.Faces = append(snap.Faces, scaleLayout(layout, 1/scale).Set(landmark.Compact))
	}
	return snap, nil
}

// locate finds the pupils and mouth corners of one detection, falling back
// to face box proportions where a cascade finds nothing.
func (p *Pigo) locate(det pigo.Detection, params pigo.ImageParams) landmark.Layout {
	s := float64(det.Scale)
	row, col := float64(det.Row), float64(det.Col)

	left := p.pupilAt(row-0.085*s, col-0.185*s, s, params)
	right := p.pupilAt(row-0.085*s, col+0.185*s, s, params)

	le := pointOf(left, landmark.Point{X: col - 0.185*s, Y: row - 0.085*s})
	re := pointOf(right, landmark.Point{X: col + 0.185*s, Y: row - 0.085*s})
	if re.X < le.X {
		le, re = re, le
	}
	center := le.Add(re).Mul(0.5)
	d := re.Sub(le).Norm()
	if d <= 0 {
		d = 0.37 * s
	}

	layout := landmark.FrontalLayout(center.X, center.Y, d)
	layout.LeftEye, layout.RightEye = le, re

	if left != nil && right != nil && p.lps[mouthCascade] != nil {
		for _, flp := range p.lps[mouthCascade] {
			a := flp.FindLandmarkPoints(left, right, params, pupilPerturbs, false)
			b := flp.FindLandmarkPoints(left, right, params, pupilPerturbs, true)
			if found(a) && found(b) {
				ml := landmark.Point{X: float64(a.Col), Y: float64(a.Row)}
				mr := landmark.Point{X: float64(b.Col), Y: float64(b.Row)}
				if mr.X < ml.X {
					ml, mr = mr, ml
				}
				layout.MouthLeft, layout.MouthRight = ml, mr
			}
		}
	}
	return layout
}

func (p *Pigo) pupilAt(row, col, scale float64, params pigo.ImageParams) *pigo.Puploc {
	pl := p.pupil.RunDetector(pigo.Puploc{
		Row:      int(row),
		Col:      int(col),
		Scale:    float32(scale) * 0.4,
		Perturbs: pupilPerturbs,
	}, params, 0.0, false)
	if !found(pl) {
		return nil
	}
	return pl
}

func found(pl *pigo.Puploc) bool {
	return pl != nil && pl.Row > 0 && pl.Col > 0
}

func pointOf(pl *pigo.Puploc, fallback landmark.Point) landmark.Point {
	if pl == nil {
		return fallback
	}
	return landmark.Point{X: float64(pl.Col), Y: float64(pl.Row)}
}

// downscale returns an NRGBA copy of img no wider than MaxWidth and the
// scale applied.
func (p *Pigo) downscale(img image.Image) (*image.NRGBA, float64) {
	b := img.Bounds()
	if p.cfg.MaxWidth <= 0 || b.Dx() <= p.cfg.MaxWidth {
		return pigo.ImgToNRGBA(img), 1
	}
	scale := float64(p.cfg.MaxWidth) / float64(b.Dx())
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewNRGBA(image.Rect(0, 0, p.cfg.MaxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, scale
}

func scaleLayout(l landmark.Layout, k float64) landmark.Layout {
	if k == 1 {
		return l
	}
	l.LeftEye = l.LeftEye.Mul(k)
	l.RightEye = l.RightEye.Mul(k)
	l.Nose = l.Nose.Mul(k)
	l.Forehead = l.Forehead.Mul(k)
	l.MouthLeft = l.MouthLeft.Mul(k)
	l.MouthRight = l.MouthRight.Mul(k)
	l.Chin = l.Chin.Mul(k)
	l.EyeWidth *= k
	l.MouthHeight *= k
	return l
}

// Close is a no-op; cascades are plain memory.
func (p *Pigo) Close() error { return nil }
