package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/transcoder"
)

var (
	// ErrCorruptSource means the source could not be decoded as an image.
	ErrCorruptSource = errors.New("corrupt source image")
	// ErrExternalTool means frame extraction or PDF rasterizing failed.
	ErrExternalTool = errors.New("thumbnail tool failed")
	// ErrUnsupportedType means no thumbnail is made for the file type.
	ErrUnsupportedType = errors.New("unsupported file type for thumbnails")
)

// DefaultSeek is the video offset the thumbnail frame is taken from.
const DefaultSeek = time.Second

var log = logging.Named("thumbnail")

// Thumbnail describes a written thumbnail file.
type Thumbnail struct {
	Path     string
	Width    int
	Height   int
	FileSize int64
	MimeType string
	// Command is the external tool invocation, empty for image sources.
	Command string
}

// Config configures a ThumbnailGenerator.
type Config struct {
	FFmpegPath  string
	ConvertPath string
	// WorkDir holds intermediate stills. Empty means os.TempDir().
	WorkDir string
	// Seek is the video frame offset; zero means DefaultSeek.
	Seek  time.Duration
	Retry filesystem.RetryConfig
}

// ThumbnailGenerator makes thumbnails for images, videos and PDFs.
type ThumbnailGenerator struct {
	ffmpegPath  string
	convertPath string
	workDir     string
	seek        time.Duration
	retry       filesystem.RetryConfig
}

// NewThumbnailGenerator creates a generator, filling defaults.
func NewThumbnailGenerator(cfg Config) *ThumbnailGenerator {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.ConvertPath == "" {
		cfg.ConvertPath = "convert"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Seek <= 0 {
		cfg.Seek = DefaultSeek
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	logging.Debug("ThumbnailGenerator: ffmpeg=%s convert=%s seek=%v", cfg.FFmpegPath, cfg.ConvertPath, cfg.Seek)
	return &ThumbnailGenerator{
		ffmpegPath:  cfg.FFmpegPath,
		convertPath: cfg.ConvertPath,
		workDir:     cfg.WorkDir,
		seek:        cfg.Seek,
		retry:       cfg.Retry,
	}
}

// Generate renders an image thumbnail of src and returns the encoded bytes.
// The same source and spec always give the same output.
func Generate(src string, spec Spec) ([]byte, error) {
	data, _, err := render(src, spec)
	return data, err
}

func render(src string, spec Spec) ([]byte, image.Rectangle, error) {
	if err := spec.Validate(); err != nil {
		return nil, image.Rectangle{}, err
	}

	box := spec.Width
	if spec.Height > box {
		box = spec.Height
	}
	img, err := loadImage(src, box)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("%w: %s: %v", ErrCorruptSource, src, err)
	}

	img = toRGB(img)
	img = rotate(img, spec.Rotation)
	img = fit(img, spec.Width, spec.Height)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, spec.Format.imaging(), imaging.JPEGQuality(spec.Quality)); err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), img.Bounds(), nil
}

// WriteThumbnail generates a thumbnail of src and atomically replaces
// target with it.
func (t *ThumbnailGenerator) WriteThumbnail(src, target string, spec Spec) (*Thumbnail, error) {
	data, bounds, err := render(src, spec)
	if err != nil {
		return nil, err
	}
	if err := t.writeAtomic(target, data); err != nil {
		return nil, err
	}

	return &Thumbnail{
		Path:     target,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		FileSize: int64(len(data)),
		MimeType: spec.Format.MimeType(),
	}, nil
}

func (t *ThumbnailGenerator) writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".thumb-*")
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpPath, 0o644)
	}
	if werr == nil {
		werr = filesystem.RenameWithRetry(tmpPath, target, t.retry)
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write thumbnail %s: %w", target, werr)
	}
	return nil
}

// Create writes the thumbnail of src, dispatching on the source type.
// Failures are returned wrapped in ErrCorruptSource, ErrExternalTool or
// ErrUnsupportedType; callers treat all of them as soft.
func (t *ThumbnailGenerator) Create(ctx context.Context, src string, fileType mediatypes.FileType, target string, spec Spec) (*Thumbnail, error) {
	start := time.Now()
	label := string(fileType)

	var (
		thumb *Thumbnail
		err   error
	)
	switch fileType {
	case mediatypes.FileTypeImage:
		thumb, err = t.WriteThumbnail(src, target, spec)
	case mediatypes.FileTypeVideo:
		thumb, err = t.fromStill(src, target, spec, func(still string) (string, error) {
			return t.VideoFrame(ctx, src, still, t.seek)
		})
	case mediatypes.FileTypePDF:
		thumb, err = t.fromStill(src, target, spec, func(still string) (string, error) {
			return t.PDFPage(ctx, src, still)
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}

	metrics.ThumbnailGenerationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	metrics.ThumbnailGenerationsTotal.WithLabelValues(label, statusFor(err)).Inc()
	if err != nil {
		log.Warn("no thumbnail for %s: %v", src, err)
		return nil, err
	}
	log.Debug("thumbnail %s (%dx%d) for %s", thumb.Path, thumb.Width, thumb.Height, src)
	return thumb, nil
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCorruptSource):
		return "error_corrupt"
	case errors.Is(err, ErrExternalTool):
		return "error_tool"
	default:
		return "error"
	}
}

// fromStill renders a still into the work dir with render and thumbnails
// it. The still is always removed.
func (t *ThumbnailGenerator) fromStill(src, target string, spec Spec, render func(still string) (string, error)) (*Thumbnail, error) {
	tmp, err := os.CreateTemp(t.workDir, "still-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create still: %w", err)
	}
	still := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(still); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove still %s: %v", still, err)
		}
	}()

	command, err := render(still)
	if err != nil {
		return nil, err
	}

	thumb, err := t.WriteThumbnail(still, target, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: unusable still from %s: %v", ErrExternalTool, src, err)
	}
	thumb.Command = command
	return thumb, nil
}

// VideoFrame extracts one frame at seek into target as MJPEG:
// ffmpeg -y -ss <seconds> -i <src> -vframes 1 -f mjpeg <target>.
func (t *ThumbnailGenerator) VideoFrame(ctx context.Context, src, target string, seek time.Duration) (string, error) {
	secs := strconv.FormatFloat(seek.Seconds(), 'f', -1, 64)
	args := []string{t.ffmpegPath, "-y", "-ss", secs, "-i", src, "-vframes", "1", "-f", "mjpeg", target}
	return runTool(ctx, "ffmpeg", args, target)
}

// PDFPage rasterizes the first page of src into target:
// convert -flatten -geometry 1000x1000 <src>[0] <target>.
func (t *ThumbnailGenerator) PDFPage(ctx context.Context, src, target string) (string, error) {
	args := []string{t.convertPath, "-flatten", "-geometry", "1000x1000", src + "[0]", target}
	return runTool(ctx, "convert", args, target)
}

// runTool runs an external tool that must leave a non-empty target behind.
// On failure target is removed.
func runTool(ctx context.Context, tool string, args []string, target string) (string, error) {
	command := transcoder.FormatCommand(args)
	log.Debug("running %s", command)

	start := time.Now()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	err := cmd.Run()
	metrics.ThumbnailExternalToolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())

	if err == nil {
		if info, statErr := os.Stat(target); statErr != nil {
			err = fmt.Errorf("no output: %w", statErr)
		} else if info.Size() == 0 {
			err = errors.New("empty output")
		}
	}
	if err != nil {
		if rmErr := os.Remove(target); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove %s: %v", target, rmErr)
		}
		return command, fmt.Errorf("%w: %s: %v", ErrExternalTool, tool, err)
	}
	return command, nil
}
