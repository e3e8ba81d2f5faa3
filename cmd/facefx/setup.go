package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dudu/facefx/internal/config"
	"github.com/dudu/facefx/internal/detector"
	"github.com/dudu/facefx/internal/inference"
	"github.com/dudu/facefx/internal/perf"
	"github.com/dudu/facefx/internal/pipeline"
	"github.com/dudu/facefx/internal/probecache"
)

// openDetector builds the configured detector. The returned cleanup shuts
// the ONNX runtime down after the detector is closed.
func openDetector(c config.Config) (pipeline.Detector, func(), error) {
	d := c.Detector
	switch d.Kind {
	case "onnx":
		if err := inference.Initialize(d.ORTLibrary); err != nil {
			return nil, nil, err
		}
		det, err := detector.NewONNX(detector.ONNXConfig{
			DetectorModel: d.DetectorModel,
			LandmarkModel: d.LandmarkModel,
			InputSize:     d.DetectionSize,
			NMSThreshold:  float32(d.NMSThreshold),
			Session:       inference.SessionOptions{CoreML: d.CoreML, IntraOpThreads: d.Threads},
			Logger:        logger,
		})
		if err != nil {
			inference.Shutdown()
			return nil, nil, fmt.Errorf("failed to load ONNX detector: %w", err)
		}
		return det, func() { inference.Shutdown() }, nil

	default:
		pc := detector.DefaultPigoConfig(d.CascadeDir)
		pc.Logger = logger
		det, err := detector.NewPigo(pc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load pigo cascades: %w", err)
		}
		return det, func() {}, nil
	}
}

// resolveTier returns the configured tier, running the cached device probe
// when the config says auto.
func resolveTier(ctx context.Context, c config.Config) (perf.Tier, error) {
	if c.Tier != config.TierAuto {
		return perf.ParseTier(c.Tier)
	}
	res, err := probe(ctx, c, false)
	if err != nil {
		return perf.TierMedium, err
	}
	return res.Tier, nil
}

// probe classifies this device, consulting the SQLite cache. force drops
// cached records first.
func probe(ctx context.Context, c config.Config, force bool) (perf.ProbeResult, error) {
	var cache perf.ProbeCache
	store, err := probecache.Open(c.ProbeDB)
	if err != nil {
		logger.Warn("probe cache unavailable", "path", c.ProbeDB, "error", err)
	} else {
		defer store.Close()
		cache = store

		now := time.Now()
		cutoff := now.Add(-perf.RecordValidity)
		if force {
			cutoff = now.Add(time.Hour)
		}
		if n, err := store.Purge(ctx, cutoff); err != nil {
			logger.Warn("probe cache purge failed", "error", err)
		} else if n > 0 {
			logger.Debug("purged probe records", "count", n)
		}
	}

	return perf.Probe(ctx, perf.DetectCapability(), cache, time.Now(), perf.WithProbeLogger(logger))
}

// newController builds a controller that frees OS memory at pressure level 2.
func newController(tier perf.Tier, c config.Config) *perf.Controller {
	return perf.New(tier,
		perf.WithMemoryThresholds(c.Memory.Moderate, c.Memory.High),
		perf.WithCleaner(perf.CleanerFunc(debug.FreeOSMemory)),
		perf.WithLogger(logger),
	)
}
