package pipeline

import (
	"context"

	ffopts "github.com/floostack/transcoder"

	"media-pipeline/internal/media"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/probe"
)

// InstanceStore persists metadata records and derived instances. It must be
// safe for concurrent use; the coordinator calls it from several workers.
type InstanceStore interface {
	ListInstances(ctx context.Context, sourcePath string) ([]mediatypes.DerivedInstance, error)
	SaveInstance(ctx context.Context, inst *mediatypes.DerivedInstance) error
	DeleteInstance(ctx context.Context, id string) error
	SaveMetadata(ctx context.Context, sourcePath string, md *mediatypes.MediaMetadata) error
}

// MetadataResolver is satisfied by *metadata.Resolver.
type MetadataResolver interface {
	Resolve(ctx context.Context, path string) (*mediatypes.MediaMetadata, error)
}

// Transcoder is satisfied by *transcoder.Transcoder.
type Transcoder interface {
	Transcode(ctx context.Context, src string, opts ffopts.Options, ext string) (string, string, error)
}

// Prober re-validates transcoder outputs. Satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Thumbnailer is satisfied by *media.ThumbnailGenerator.
type Thumbnailer interface {
	Create(ctx context.Context, src string, fileType mediatypes.FileType, target string, spec media.Spec) (*media.Thumbnail, error)
}

// Gate holds back new files while resources are short. Satisfied by
// *memory.Monitor.
type Gate interface {
	Wait(ctx context.Context) error
}
