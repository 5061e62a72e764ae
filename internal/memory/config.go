package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg, ImageMagick and libvips, which
// allocate outside it.
const DefaultMemoryRatio = 0.75

// ConfigResult describes how GOMEMLIMIT was configured.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

func (r ConfigResult) String() string {
	switch r.Source {
	case "GOMEMLIMIT":
		return "GOMEMLIMIT " + formatBytes(r.GoMemLimit) + " (from environment)"
	case "MEMORY_LIMIT":
		return fmt.Sprintf("GOMEMLIMIT %s (%.0f%% of %s)", formatBytes(r.GoMemLimit), r.Ratio*100, formatBytes(r.ContainerLimit))
	default:
		return "no memory limit"
	}
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// first thing in main.
//
// GOMEMLIMIT, when set, wins. Otherwise MEMORY_LIMIT (bytes, usually from
// the Kubernetes Downward API) times MEMORY_RATIO becomes the limit.
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: "none"}

	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		log.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limitStr := os.Getenv("MEMORY_LIMIT")
	if limitStr == "" {
		log.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured")
		return result
	}
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		log.Warn("ignoring invalid MEMORY_LIMIT %q", limitStr)
		return result
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			log.Warn("failed to parse MEMORY_RATIO %q: %v, using %.2f", ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1:
			log.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using %.2f", ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result = ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
	log.Info("configured %s", result)
	return result
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
