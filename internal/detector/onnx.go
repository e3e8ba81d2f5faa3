package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/dudu/facefx/internal/inference"
	"github.com/dudu/facefx/internal/landmark"
	"github.com/dudu/facefx/internal/logging"
)

// ONNXConfig configures the ONNX Runtime detector
type ONNXConfig struct {
	DetectorModel string // SCRFD
	LandmarkModel string // 2d106det, optional
	InputSize     int
	NMSThreshold  float32
	Session       inference.SessionOptions
	Logger        *slog.Logger
}

// ONNX finds faces with SCRFD and refines them with the 106-point model
// when one is configured.
type ONNX struct {
	scrfd     *SCRFD
	landmarks *Landmark106
	logger    *slog.Logger
}

// NewONNX loads the models. inference.Initialize must have been called.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.InputSize == 0 {
		cfg.InputSize = 640
	}
	if cfg.NMSThreshold == 0 {
		cfg.NMSThreshold = 0.4
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}

	scrfd, err := NewSCRFD(cfg.DetectorModel, cfg.InputSize, cfg.NMSThreshold, cfg.Session)
	if err != nil {
		return nil, err
	}

	d := &ONNX{scrfd: scrfd, logger: logging.OrNop(cfg.Logger)}
	if cfg.LandmarkModel != "" {
		lm, err := NewLandmark106(cfg.LandmarkModel, cfg.Session)
		if err != nil {
			scrfd.Close()
			return nil, err
		}
		d.landmarks = lm
	}
	return d, nil
}

// Detect returns every face scoring at least minConfidence, largest score
// first, in the compact vocabulary.
func (d *ONNX) Detect(ctx context.Context, img image.Image, minConfidence float64) (landmark.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Snapshot{}, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return landmark.Snapshot{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	faces, err := d.scrfd.Detect(mat, float32(minConfidence))
	if err != nil {
		return landmark.Snapshot{}, err
	}

	snap := landmark.Snapshot{Vocabulary: landmark.Compact, Faces: make([]landmark.Set, 0, len(faces))}
	for i := range faces {
		if d.landmarks != nil {
			if err := ctx.Err(); err != nil {
				return landmark.Snapshot{}, err
			}
			if err := d.landmarks.Detect(mat, &faces[i]); err != nil {
				// Five keypoints are enough for a usable layout.
				d.logger.Debug("dense landmarks failed", "face", i, "error", err)
			}
		}
		snap.Faces = append(snap.Faces, faces[i].Compact())
	}
	return snap, nil
}

// Close releases both sessions
func (d *ONNX) Close() error {
	var errs []error
	if err := d.scrfd.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.landmarks != nil {
		if err := d.landmarks.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
