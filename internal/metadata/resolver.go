package metadata

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"media-pipeline/internal/exif"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/probe"
)

var log = logging.Named("metadata")

// Prober is the part of probe.Prober the resolver uses.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Config configures a Resolver.
type Config struct {
	Prober Prober
	// ZoneLookup maps a position to an IANA zone name; nil uses latlong.
	ZoneLookup exif.ZoneLookup
	// HashFiles enables md5/sha1 content hashes.
	HashFiles bool
	// AudioTags enables title/comment lookup in audio files.
	AudioTags bool
	Retry     filesystem.RetryConfig
}

// Resolver builds MediaMetadata records. It is safe for concurrent use.
type Resolver struct {
	prober    Prober
	zones     exif.ZoneLookup
	hashFiles bool
	audioTags bool
	retry     filesystem.RetryConfig
}

// New creates a Resolver. A nil Prober gets a default probe.Prober.
func New(cfg Config) *Resolver {
	if cfg.Prober == nil {
		cfg.Prober = probe.New(probe.Config{})
	}
	if cfg.ZoneLookup == nil {
		cfg.ZoneLookup = exif.DefaultZoneLookup
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	return &Resolver{
		prober:    cfg.Prober,
		zones:     cfg.ZoneLookup,
		hashFiles: cfg.HashFiles,
		audioTags: cfg.AudioTags,
		retry:     cfg.Retry,
	}
}

// Resolve extracts the metadata of path.
//
// The returned record is non-nil whenever the file could be stat'ed, even
// when err is not nil: a failed probe still leaves size, modification time
// and MIME type. err is either a stat failure or a *probe.ProbeError.
func (r *Resolver) Resolve(ctx context.Context, path string) (*mediatypes.MediaMetadata, error) {
	info, err := filesystem.StatWithRetry(path, r.retry)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mime := sniff(path)
	md := &mediatypes.MediaMetadata{
		MimeType: mime,
		FileSize: info.Size(),
		ModTime:  info.ModTime(),
		Type:     mediatypes.GetFileType(mime),
	}

	if r.hashFiles {
		md.MD5, md.SHA1 = r.hash(path)
	}

	switch {
	case isProbeCandidate(mime):
		err = r.resolveStreams(ctx, path, md)
	case md.Type == mediatypes.FileTypeImage || md.Type == mediatypes.FileTypePDF:
		r.resolveImage(path, md)
	default:
		log.Debug("%s: %s gets the minimal record", path, mime)
	}

	metrics.MetadataResolvedTotal.WithLabelValues(string(md.Type)).Inc()
	return md, err
}

// sniff detects the MIME type from the file content. Parameters such as
// "; charset=utf-8" are dropped.
func sniff(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		log.Warn("sniffing %s: %v", path, err)
		return "application/octet-stream"
	}
	s := m.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// isProbeCandidate reports whether ffprobe should classify the file.
// Some audio containers sniff as octet-stream, and Ogg is reported as
// application/ogg until its streams are looked at.
func isProbeCandidate(mime string) bool {
	return strings.HasPrefix(mime, "video/") ||
		strings.HasPrefix(mime, "audio/") ||
		mime == "application/octet-stream" ||
		mime == "application/ogg"
}

func (r *Resolver) resolveStreams(ctx context.Context, path string, md *mediatypes.MediaMetadata) error {
	res, err := r.prober.Probe(ctx, path)
	if err != nil {
		md.Type = mediatypes.FileTypeOther
		return err
	}

	switch res.Classify() {
	case probe.ClassVideo:
		md.Type = mediatypes.FileTypeVideo
		applyInfo(md, res.VideoInfo())
	case probe.ClassAudio:
		md.Type = mediatypes.FileTypeAudio
		applyInfo(md, res.AudioInfo())
		md.MimeType = audioMimeType(path, md.MimeType)
		if r.audioTags {
			readAudioTags(path, md)
		}
	default:
		md.Type = mediatypes.FileTypeOther
		log.Debug("%s: no audio or video stream", path)
	}
	return nil
}

func applyInfo(md *mediatypes.MediaMetadata, info probe.Info) {
	md.Duration = info.Duration
	md.Width = info.Width
	md.Height = info.Height
	md.Bitrate = info.Bitrate
	md.Framerate = info.Framerate
	md.Geo = info.Geo
	md.CaptureTime = info.CreationTime
}

// audioMimeType corrects the MIME type of a file classified as audio. An
// extension listed in mediatypes.AudioMimeTypes wins; otherwise a "video/"
// prefix becomes "audio/".
func audioMimeType(path, sniffed string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if m, ok := mediatypes.AudioMimeTypes[ext]; ok {
		return m
	}
	if rest, ok := strings.CutPrefix(sniffed, "video/"); ok {
		return "audio/" + rest
	}
	return sniffed
}

// resolveImage fills image dimensions and tag-derived fields. If the file
// cannot be read as an image the record stays minimal.
func (r *Resolver) resolveImage(path string, md *mediatypes.MediaMetadata) {
	w, h, err := r.dimensions(path)
	if err != nil {
		log.Warn("reading %s as image: %v", path, err)
		return
	}
	md.Width = &w
	md.Height = &h

	tags, err := exif.Extract(path, r.zones)
	if err != nil {
		log.Warn("reading tags of %s: %v", path, err)
		return
	}
	md.Geo = tags.Geo
	md.Direction = tags.Direction
	md.GPSTime = tags.GPSTime
	md.CaptureTime = tags.CaptureTime
	md.Rotation = tags.Rotation
	md.Title = tags.IPTC.Title
	md.Caption = tags.IPTC.Caption
	md.Keywords = tags.IPTC.KeywordList()
	md.Tags = tags.IPTC.Keywords
}

func (r *Resolver) dimensions(path string) (int, int, error) {
	f, err := filesystem.OpenWithRetry(path, r.retry)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
