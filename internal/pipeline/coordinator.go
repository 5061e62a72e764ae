package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/media"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/probe"
	"media-pipeline/internal/transcoder"
)

// ErrUnusableOutput means a transcoder output had no stream of the
// expected kind when probed again.
var ErrUnusableOutput = errors.New("transcoder output has no usable stream")

// DefaultParallelism is how many parameter sets of one file run at once.
const DefaultParallelism = 2

var log = logging.Named("pipeline")

// Config wires a Coordinator to its collaborators.
type Config struct {
	Resolver    MetadataResolver
	Transcoder  Transcoder
	Prober      Prober
	Thumbnailer Thumbnailer
	Store       InstanceStore

	// OutputDir receives derived instances; it must exist.
	OutputDir     string
	ThumbnailSpec media.Spec
	// PresetsFor selects the parameter sets of a classified source. Nil
	// means transcoder.PresetsFor.
	PresetsFor func(mediatypes.FileType) []transcoder.ParamSet
	// Parallelism bounds the parameter sets of one file. Zero means
	// DefaultParallelism.
	Parallelism int
	// Workers bounds the files processed at once by Run. Zero sizes the
	// pool with workers.ForMixed.
	Workers int
	// FileTimeout limits one file's run inside Run. Zero means no limit.
	FileTimeout time.Duration
	Retry       filesystem.RetryConfig
	// Gate, when set, is waited on by Run before each file starts.
	Gate Gate
	// OnReport, when set, is called by Run as each file finishes. It may
	// be called from several goroutines at once.
	OnReport func(*Report)
}

// Options are per-run policy knobs.
type Options struct {
	// Redo deletes existing instances and regenerates them. Without it a
	// source that already has instances is skipped.
	Redo bool
	// Rotation is an explicit thumbnail rotation; it overrides the
	// orientation tag when not zero.
	Rotation mediatypes.Rotation
}

// Coordinator sequences metadata resolution, transcoding and thumbnail
// generation for source files.
type Coordinator struct {
	resolver    MetadataResolver
	transcoder  Transcoder
	prober      Prober
	thumbnailer Thumbnailer
	store       InstanceStore

	outputDir   string
	thumbSpec   media.Spec
	presetsFor  func(mediatypes.FileType) []transcoder.ParamSet
	parallelism int
	workers     int
	fileTimeout time.Duration
	retry       filesystem.RetryConfig
	gate        Gate
	onReport    func(*Report)
}

// New validates cfg and creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Resolver == nil:
		return nil, errors.New("pipeline: resolver is required")
	case cfg.Transcoder == nil:
		return nil, errors.New("pipeline: transcoder is required")
	case cfg.Prober == nil:
		return nil, errors.New("pipeline: prober is required")
	case cfg.Thumbnailer == nil:
		return nil, errors.New("pipeline: thumbnailer is required")
	case cfg.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case cfg.OutputDir == "":
		return nil, errors.New("pipeline: output directory is required")
	}

	if cfg.ThumbnailSpec == (media.Spec{}) {
		cfg.ThumbnailSpec = media.DefaultSpec()
	}
	if err := cfg.ThumbnailSpec.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.PresetsFor == nil {
		cfg.PresetsFor = transcoder.PresetsFor
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}

	return &Coordinator{
		resolver:    cfg.Resolver,
		transcoder:  cfg.Transcoder,
		prober:      cfg.Prober,
		thumbnailer: cfg.Thumbnailer,
		store:       cfg.Store,
		outputDir:   cfg.OutputDir,
		thumbSpec:   cfg.ThumbnailSpec,
		presetsFor:  cfg.PresetsFor,
		parallelism: cfg.Parallelism,
		workers:     cfg.Workers,
		fileTimeout: cfg.FileTimeout,
		retry:       cfg.Retry,
		gate:        cfg.Gate,
		onReport:    cfg.OnReport,
	}, nil
}

// Process runs the whole pipeline for one source file. It never returns
// nil; problems are described by the report.
//
// A source that already has instances is skipped before anything is
// probed, unless opts.Redo is set. Metadata is saved even when probing
// fails. A failed parameter set or thumbnail is recorded in
// Report.Failures and does not stop the others; a missing ffmpeg or
// ffprobe fails the file at StateInstancesGenerated.
func (c *Coordinator) Process(ctx context.Context, path string, opts Options) *Report {
	report := &Report{Path: path, State: StateNew}

	metrics.PipelineFilesInFlight.Inc()
	defer metrics.PipelineFilesInFlight.Dec()
	defer func() {
		metrics.PipelineFilesTotal.WithLabelValues(report.Outcome()).Inc()
	}()

	existing, err := c.store.ListInstances(ctx, path)
	if err != nil {
		return report.fail(StateNew, fmt.Errorf("list instances: %w", err))
	}
	if len(existing) > 0 && !opts.Redo {
		log.Debug("%s: %d instances exist, skipping", path, len(existing))
		report.Skipped = true
		report.Instances = existing
		report.advance(StateDone)
		return report
	}

	start := time.Now()
	md, err := c.resolver.Resolve(ctx, path)
	observeStage(StateProbed, start)
	report.Metadata = md
	if err != nil {
		if md != nil {
			if saveErr := c.store.SaveMetadata(ctx, path, md); saveErr != nil {
				log.Warn("%s: saving partial metadata: %v", path, saveErr)
			}
		}
		log.Warn("%s: %v", path, err)
		return report.fail(StateProbed, err)
	}
	report.advance(StateProbed)

	start = time.Now()
	if err := c.store.SaveMetadata(ctx, path, md); err != nil {
		return report.fail(StateMetadataResolved, fmt.Errorf("save metadata: %w", err))
	}
	observeStage(StateMetadataResolved, start)
	report.advance(StateMetadataResolved)

	if len(existing) > 0 {
		if err := c.removeInstances(ctx, existing); err != nil {
			return report.fail(StateInstancesGenerated, err)
		}
		log.Info("%s: removed %d instances for regeneration", path, len(existing))
	}

	start = time.Now()
	err = c.generateInstances(ctx, path, md, report)
	observeStage(StateInstancesGenerated, start)
	if err != nil {
		log.Error("%s: %v", path, err)
		return report.fail(StateInstancesGenerated, err)
	}
	if err := ctx.Err(); err != nil {
		return report.fail(StateInstancesGenerated, err)
	}
	report.advance(StateInstancesGenerated)

	start = time.Now()
	c.generateThumbnail(ctx, path, md, opts, report)
	observeStage(StateThumbnailGenerated, start)
	if err := ctx.Err(); err != nil {
		return report.fail(StateThumbnailGenerated, err)
	}
	report.advance(StateThumbnailGenerated)

	report.advance(StateDone)
	log.Info("%s: %s, %d instances, %d failures", path, md.Type, len(report.Instances), len(report.Failures))
	return report
}

func observeStage(s State, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
}

// removeInstances deletes the file and then the record of every instance.
func (c *Coordinator) removeInstances(ctx context.Context, instances []mediatypes.DerivedInstance) error {
	for _, inst := range instances {
		if err := filesystem.RemoveWithRetry(inst.Path, c.retry); err != nil {
			return fmt.Errorf("remove instance file %s: %w", inst.Path, err)
		}
		if err := c.store.DeleteInstance(ctx, inst.ID); err != nil {
			return fmt.Errorf("delete instance %s: %w", inst.ID, err)
		}
	}
	return nil
}

// generateInstances runs the parameter sets of md.Type concurrently.
// Instances are reported in preset order. A missing ffmpeg or ffprobe is
// returned instead of being recorded as a soft failure.
func (c *Coordinator) generateInstances(ctx context.Context, path string, md *mediatypes.MediaMetadata, report *Report) error {
	presets := c.presetsFor(md.Type)
	if len(presets) == 0 {
		return nil
	}

	instances := make([]*mediatypes.DerivedInstance, len(presets))
	errs := make([]error, len(presets))

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, ps := range presets {
		g.Go(func() error {
			instances[i], errs[i] = c.makeInstance(ctx, path, ps)
			return nil
		})
	}
	_ = g.Wait()

	var missing error
	for i, ps := range presets {
		switch {
		case errs[i] == nil:
			report.Instances = append(report.Instances, *instances[i])
		case isToolMissing(errs[i]):
			if missing == nil {
				missing = errs[i]
			}
		default:
			log.Warn("%s: preset %s failed: %v", path, ps.Name, errs[i])
			report.softFailure(StateInstancesGenerated, ps.Name, errs[i])
		}
	}
	return missing
}

func isToolMissing(err error) bool {
	return errors.Is(err, transcoder.ErrToolMissing) || errors.Is(err, probe.ErrToolMissing)
}

// makeInstance transcodes src with ps, validates the output by probing it
// again, moves it into the output directory and saves the record. On any
// error the output file is removed.
func (c *Coordinator) makeInstance(ctx context.Context, src string, ps transcoder.ParamSet) (*mediatypes.DerivedInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tmp, command, err := c.transcoder.Transcode(ctx, src, ps, ps.Extension)
	if err != nil {
		return nil, err
	}

	res, err := c.prober.Probe(ctx, tmp)
	if err != nil {
		c.discard(tmp)
		if errors.Is(err, probe.ErrToolMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnusableOutput, ps.Name, err)
	}
	info, ok := usableInfo(res, ps.Kind)
	if !ok {
		c.discard(tmp)
		return nil, fmt.Errorf("%w: %s", ErrUnusableOutput, ps.Name)
	}

	id := uuid.NewString()
	target := c.targetPath(id, ps.Extension)
	if err := filesystem.RenameWithRetry(tmp, target, c.retry); err != nil {
		c.discard(tmp)
		return nil, fmt.Errorf("move %s output: %w", ps.Name, err)
	}
	fi, err := filesystem.StatWithRetry(target, c.retry)
	if err != nil {
		c.discard(target)
		return nil, fmt.Errorf("stat %s output: %w", ps.Name, err)
	}

	inst := &mediatypes.DerivedInstance{
		ID:         id,
		SourcePath: src,
		Kind:       ps.Kind,
		Preset:     ps.Name,
		Path:       target,
		Extension:  ps.Extension,
		Command:    command,
		MimeType:   ps.MimeType,
		FileSize:   fi.Size(),
		Width:      info.Width,
		Height:     info.Height,
		Duration:   info.Duration,
		Bitrate:    info.Bitrate,
		Framerate:  info.Framerate,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.store.SaveInstance(ctx, inst); err != nil {
		c.discard(target)
		return nil, fmt.Errorf("save %s instance: %w", ps.Name, err)
	}
	return inst, nil
}

// usableInfo returns the measured properties of a transcoder output, or
// false when it has no stream of the kind the preset produces.
func usableInfo(res *probe.Result, kind mediatypes.InstanceKind) (probe.Info, bool) {
	want := "audio"
	if kind == mediatypes.KindTranscodedVideo {
		want = "video"
	}
	for _, s := range res.Streams {
		if s.CodecType != want {
			continue
		}
		if want == "video" {
			return res.VideoInfo(), true
		}
		return res.AudioInfo(), true
	}
	return probe.Info{}, false
}

func thumbnailable(t mediatypes.FileType) bool {
	return t == mediatypes.FileTypeImage || t == mediatypes.FileTypeVideo || t == mediatypes.FileTypePDF
}

// generateThumbnail writes and records the thumbnail. Failures are soft.
func (c *Coordinator) generateThumbnail(ctx context.Context, path string, md *mediatypes.MediaMetadata, opts Options, report *Report) {
	if !thumbnailable(md.Type) {
		return
	}

	spec := c.thumbSpec
	spec.Rotation = opts.Rotation
	if md.Type == mediatypes.FileTypeImage {
		spec.Rotation = media.EffectiveRotation(opts.Rotation, md.Rotation)
	}

	id := uuid.NewString()
	ext := spec.Format.Extension()
	thumb, err := c.thumbnailer.Create(ctx, path, md.Type, c.targetPath(id, ext), spec)
	if err != nil {
		report.softFailure(StateThumbnailGenerated, "thumbnail", err)
		return
	}

	inst := &mediatypes.DerivedInstance{
		ID:         id,
		SourcePath: path,
		Kind:       mediatypes.KindThumbnail,
		Preset:     fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		Path:       thumb.Path,
		Extension:  ext,
		Command:    thumb.Command,
		MimeType:   thumb.MimeType,
		FileSize:   thumb.FileSize,
		Width:      mediatypes.Ptr(thumb.Width),
		Height:     mediatypes.Ptr(thumb.Height),
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.store.SaveInstance(ctx, inst); err != nil {
		c.discard(thumb.Path)
		report.softFailure(StateThumbnailGenerated, "thumbnail", fmt.Errorf("save thumbnail instance: %w", err))
		return
	}
	report.Instances = append(report.Instances, *inst)
}

func (c *Coordinator) targetPath(id, ext string) string {
	return filepath.Join(c.outputDir, id+"."+ext)
}

func (c *Coordinator) discard(path string) {
	if err := filesystem.RemoveWithRetry(path, c.retry); err != nil {
		log.Warn("failed to remove %s: %v", path, err)
	}
}
