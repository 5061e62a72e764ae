package probe

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// DefaultVideoMinDuration is the shortest stream, in seconds, that counts
// as video. Single-frame motion-JPEG stills report a video stream with a
// near-zero duration.
const DefaultVideoMinDuration = 1.0

var log = logging.Named("probe")

// Config configures a Prober.
type Config struct {
	// BinaryPath is the ffprobe executable; a bare name is looked up in PATH.
	BinaryPath string
	// VideoMinDuration is the classification threshold in seconds.
	VideoMinDuration float64
}

// Prober runs ffprobe. It holds no per-file state and is safe for
// concurrent use.
type Prober struct {
	binaryPath       string
	videoMinDuration float64
}

// New creates a Prober. Zero values in cfg fall back to "ffprobe" and
// DefaultVideoMinDuration.
func New(cfg Config) *Prober {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffprobe"
	}
	if cfg.VideoMinDuration <= 0 {
		cfg.VideoMinDuration = DefaultVideoMinDuration
	}
	return &Prober{binaryPath: cfg.BinaryPath, videoMinDuration: cfg.VideoMinDuration}
}

// Command returns the argument vector Probe runs for path.
func (p *Prober) Command(path string) []string {
	return []string{p.binaryPath, "-v", "quiet", "-print_format", "json", "-show_streams", "-show_format", path}
}

// Probe inspects path with ffprobe. A missing binary and a failed run are
// both returned as *ProbeError; neither is a soft failure.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	args := p.Command(path)
	log.Debug("running %v", args)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// stderr stays nil: the output is discarded.

	err := cmd.Run()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if isNotFound(err) {
			metrics.ProbeInvocationsTotal.WithLabelValues("tool_missing").Inc()
			return nil, &ProbeError{Kind: ToolMissing, Path: path, Err: err}
		}
		metrics.ProbeInvocationsTotal.WithLabelValues("tool_failure").Inc()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &ProbeError{Kind: ToolFailure, Path: path, Err: err}
	}

	res, err := ParseResult(stdout.Bytes(), p.videoMinDuration)
	if err != nil {
		metrics.ProbeInvocationsTotal.WithLabelValues("tool_failure").Inc()
		return nil, &ProbeError{Kind: ToolFailure, Path: path, Err: err}
	}

	metrics.ProbeInvocationsTotal.WithLabelValues("success").Inc()
	log.Debug("%s: %d streams, format %q", path, len(res.Streams), res.Format.FormatName)
	return res, nil
}

// isNotFound reports whether starting the command failed because the
// binary does not exist, either in PATH or at an explicit path.
func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.Is(err, fs.ErrNotExist)
}
