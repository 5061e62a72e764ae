package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

var (
	// ErrToolMissing means the ffmpeg binary could not be found.
	ErrToolMissing = errors.New("ffmpeg not found")
	// ErrToolFailure means ffmpeg exited with an error.
	ErrToolFailure = errors.New("ffmpeg failed")
)

// tempPrefix marks files owned by Transcode in the work directory.
const tempPrefix = "transcode-"

var log = logging.Named("transcoder")

// Config configures a Transcoder.
type Config struct {
	// FFmpegPath is the ffmpeg executable; a bare name is looked up in PATH.
	FFmpegPath string
	// WorkDir receives temporary outputs. Empty means os.TempDir().
	WorkDir string
}

// Transcoder runs FFmpeg jobs and tracks the running processes.
type Transcoder struct {
	ffmpegPath string
	workDir    string
	processes  map[string]*exec.Cmd
	processMu  sync.Mutex
}

// New creates a new Transcoder instance.
func New(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Transcoder{
		ffmpegPath: cfg.FFmpegPath,
		workDir:    cfg.WorkDir,
		processes:  make(map[string]*exec.Cmd),
	}
}

// WorkDir returns the directory temporary outputs are written to.
func (t *Transcoder) WorkDir() string {
	return t.workDir
}

// Command returns the argument vector for transcoding src into out:
// ffmpeg -i <src> -y <options> <out>.
func (t *Transcoder) Command(src, out string, opts transcoder.Options) []string {
	overwrite := true
	args := []string{t.ffmpegPath, "-i", src}
	args = append(args, (&ffmpeg.Options{Overwrite: &overwrite}).GetStrArguments()...)
	args = append(args, opts.GetStrArguments()...)
	return append(args, out)
}

// Transcode converts src with opts into a new temporary file with extension
// ext. It returns the output path and the command line that produced it.
// stderr of ffmpeg is discarded; on any error no output file remains.
func (t *Transcoder) Transcode(ctx context.Context, src string, opts transcoder.Options, ext string) (string, string, error) {
	preset := presetName(opts, ext)
	start := time.Now()

	tmp, err := os.CreateTemp(t.workDir, tempPrefix+"*."+strings.TrimPrefix(ext, "."))
	if err != nil {
		return "", "", fmt.Errorf("create temp output: %w", err)
	}
	out := tmp.Name()
	if err := tmp.Close(); err != nil {
		t.removeTemp(out)
		return "", "", fmt.Errorf("close temp output: %w", err)
	}

	args := t.Command(src, out, opts)
	commandLine := FormatCommand(args)
	log.Debug("running %s", commandLine)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	t.processMu.Lock()
	t.processes[out] = cmd
	t.processMu.Unlock()
	metrics.TranscoderJobsInProgress.Inc()

	err = cmd.Run()

	metrics.TranscoderJobsInProgress.Dec()
	t.processMu.Lock()
	delete(t.processes, out)
	t.processMu.Unlock()
	metrics.TranscoderJobDuration.WithLabelValues(preset).Observe(time.Since(start).Seconds())

	if err != nil {
		t.removeTemp(out)
		if isNotFound(err) {
			metrics.TranscoderJobsTotal.WithLabelValues(preset, "tool_missing").Inc()
			return "", commandLine, fmt.Errorf("%w: %v", ErrToolMissing, err)
		}
		metrics.TranscoderJobsTotal.WithLabelValues(preset, "tool_failure").Inc()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", commandLine, fmt.Errorf("%w: %s: %v", ErrToolFailure, preset, err)
	}

	metrics.TranscoderJobsTotal.WithLabelValues(preset, "success").Inc()
	log.Info("transcoded %s -> %s (%s) in %v", src, out, preset, time.Since(start).Round(time.Millisecond))
	return out, commandLine, nil
}

func (t *Transcoder) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to remove temp output %s: %v", path, err)
	}
}

func presetName(opts transcoder.Options, ext string) string {
	if p, ok := opts.(ParamSet); ok && p.Name != "" {
		return p.Name
	}
	return strings.TrimPrefix(ext, ".")
}

// FormatCommand joins args into a single audit line, quoting arguments
// that contain whitespace or quotes.
func FormatCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

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

// Cleanup stops all active transcoding processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			log.Info("Killing transcoding process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				log.Warn("failed to kill transcoding process for %s: %v", path, err)
			}
		}
	}
}

// ClearStale removes temporary outputs left in the work directory by an
// earlier, interrupted run and returns the number of bytes freed. Only
// files carrying the transcoder's prefix are touched.
func (t *Transcoder) ClearStale() (int64, error) {
	entries, err := os.ReadDir(t.workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read work directory: %w", err)
	}

	t.processMu.Lock()
	defer t.processMu.Unlock()

	var freedBytes int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		path := filepath.Join(t.workDir, entry.Name())
		if _, running := t.processes[path]; running {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn("failed to get info for %s: %v", path, err)
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warn("failed to remove file %s: %v", path, err)
			continue
		}
		freedBytes += info.Size()
	}

	if freedBytes > 0 {
		log.Info("Cleared stale transcode outputs: freed %d bytes", freedBytes)
	}
	return freedBytes, nil
}
