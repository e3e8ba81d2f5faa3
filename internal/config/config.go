// Package config loads facefx settings from config.json in the platform data
// directory. Values in the file are merged over the defaults, so a file only
// needs the keys it changes.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dudu/facefx/internal/filter"
	"github.com/dudu/facefx/internal/perf"
)

// AppName names the data directory
const AppName = "facefx"

// TierAuto runs the device probe to pick the initial tier
const TierAuto = "auto"

// Camera settings
type Camera struct {
	Backend string `json:"backend"` // gocv or v4l2
	Index   int    `json:"index"`
	Device  string `json:"device"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	FPS     int    `json:"fps"`
}

// Detector settings
type Detector struct {
	Kind          string  `json:"kind"` // pigo or onnx
	CascadeDir    string  `json:"cascadeDir"`
	DetectorModel string  `json:"detectorModel"`
	LandmarkModel string  `json:"landmarkModel"`
	ORTLibrary    string  `json:"ortSharedLibraryPath"`
	DetectionSize int     `json:"detectionSize"`
	NMSThreshold  float64 `json:"nmsThreshold"`
	CoreML        bool    `json:"coreml"`
	Threads       int     `json:"threads"`
}

// Memory holds the live resource thresholds for pressure levels 1 and 2
type Memory struct {
	Moderate int `json:"moderate"`
	High     int `json:"high"`
}

// Log settings
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text or json
}

// Config holds application configuration
type Config struct {
	Camera   Camera   `json:"camera"`
	Detector Detector `json:"detector"`
	Filter   string   `json:"filter"`
	Tier     string   `json:"tier"`
	Memory   Memory   `json:"memory"`
	ProbeDB  string   `json:"probeDb"`
	Log      Log      `json:"log"`
	Preview  bool     `json:"preview"`
}

// DefaultPath returns the config.json location in the data directory
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Camera: Camera{
			Backend: "gocv",
			Device:  "/dev/video0",
			Width:   1280,
			Height:  720,
			FPS:     30,
		},
		Detector: Detector{
			Kind:          "pigo",
			CascadeDir:    filepath.Join(DataDir(), "cascade"),
			DetectorModel: filepath.Join(DataDir(), "models", "scrfd_10g.onnx"),
			DetectionSize: 640,
			NMSThreshold:  0.4,
		},
		Filter:  filter.MorphName,
		Tier:    TierAuto,
		Memory:  Memory{Moderate: perf.DefaultMemoryModerate, High: perf.DefaultMemoryHigh},
		ProbeDB: filepath.Join(DataDir(), "probe.db"),
		Log:     Log{Level: "info", Format: "text"},
		Preview: true,
	}
}

// Load reads path (DefaultPath when empty) over the defaults. A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse merges a JSON document over the defaults
func Parse(data []byte) (Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}
	var incoming map[string]json.RawMessage
	if err := json.Unmarshal(data, &incoming); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	deepMergeJSON(base, incoming)

	merged, err := json.Marshal(base)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal merged config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(merged, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return c, nil
}

// Save writes c to path, keeping keys of an existing file it does not know.
func Save(path string, c Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	base := map[string]json.RawMessage{}
	if existing, readErr := os.ReadFile(path); readErr == nil {
		var tmp map[string]json.RawMessage
		if err := json.Unmarshal(existing, &tmp); err == nil {
			base = tmp
		}
	}
	incoming, err := toMap(c)
	if err != nil {
		return err
	}
	deepMergeJSON(base, incoming)

	data, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal merged config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks enumerated fields
func (c Config) Validate() error {
	var errs []error
	switch c.Camera.Backend {
	case "gocv", "v4l2":
	default:
		errs = append(errs, fmt.Errorf("camera.backend %q: want gocv or v4l2", c.Camera.Backend))
	}
	switch c.Detector.Kind {
	case "pigo", "onnx":
	default:
		errs = append(errs, fmt.Errorf("detector.kind %q: want pigo or onnx", c.Detector.Kind))
	}
	if c.Tier != TierAuto {
		if _, err := perf.ParseTier(c.Tier); err != nil {
			errs = append(errs, fmt.Errorf("tier: %w", err))
		}
	}
	if _, err := filter.ByName(c.Filter, nil); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if c.Memory.Moderate <= 0 || c.Memory.High < c.Memory.Moderate {
		errs = append(errs, fmt.Errorf("memory thresholds %d/%d: want 0 < moderate <= high", c.Memory.Moderate, c.Memory.High))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

func toMap(c Config) (map[string]json.RawMessage, error) {
	marshaled, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(marshaled, &m); err != nil {
		return nil, fmt.Errorf("failed to map config JSON: %w", err)
	}
	return m, nil
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj, srcObj map[string]json.RawMessage
			if json.Unmarshal(existing, &dstObj) != nil || json.Unmarshal(v, &srcObj) != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}
