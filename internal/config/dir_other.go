//go:build !linux

package config

import (
	"os"
	"path/filepath"
)

// DataDir returns the per-user configuration directory
// (Application Support on macOS, AppData on Windows).
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, AppName)
}
