package perf

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// signatureSpace namespaces device signatures.
var signatureSpace = uuid.MustParse("6f1c3a52-8d4e-5b7a-9c21-4e0f7d2b9a10")

// Capability describes the host a probe result belongs to.
type Capability struct {
	OS     string
	Arch   string
	NumCPU int
	Model  string
	// Mobile selects the mobile duration thresholds.
	Mobile bool
	// Constrained platforms are capped one tier below their measured class.
	Constrained bool
}

// DetectCapability inspects the running process. It is meant to be called
// once at startup and the result passed to whoever needs it.
func DetectCapability() Capability {
	c := Capability{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
		Model:  cpuModel(),
	}
	switch runtime.GOOS {
	case "android":
		c.Mobile = true
	case "ios":
		c.Mobile = true
		c.Constrained = true
	}
	// Small ARM boards behave like phones under sustained load.
	if strings.HasPrefix(runtime.GOARCH, "arm") && c.NumCPU <= 4 {
		c.Constrained = true
	}
	return c
}

// Signature returns a stable identifier for c. Any field change produces a
// different signature, which invalidates cached probe records.
func (c Capability) Signature() string {
	key := fmt.Sprintf("%s|%s|%d|%s|%t|%t", c.OS, c.Arch, c.NumCPU, c.Model, c.Mobile, c.Constrained)
	return uuid.NewSHA1(signatureSpace, []byte(key)).String()
}

// cpuModel reads the CPU model name on Linux and returns "" elsewhere.
func cpuModel() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model name", "Model", "Hardware":
			return strings.TrimSpace(value)
		}
	}
	return ""
}
