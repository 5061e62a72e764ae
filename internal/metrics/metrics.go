package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	PipelineFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_files_total",
			Help: "Total number of source files processed by outcome",
		},
		[]string{"outcome"}, // "done", "failed", "skipped"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	PipelineFilesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_files_in_flight",
			Help: "Number of source files currently being processed",
		},
	)

	PipelineWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_workers",
			Help: "Number of workers in the file processing pool",
		},
	)

	PipelineLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)
)

// Extraction metrics
var (
	ExtractionSoftFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_extraction_soft_failures_total",
			Help: "Metadata fields dropped because the source value was unusable",
		},
		[]string{"component", "field"},
	)

	ProbeInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_probe_invocations_total",
			Help: "Total number of ffprobe invocations by status",
		},
		[]string{"status"}, // "success", "tool_missing", "tool_failure"
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	MetadataResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_metadata_resolved_total",
			Help: "Total number of metadata records resolved by media type",
		},
		[]string{"type"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ThumbnailExternalToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_thumbnail_external_tool_duration_seconds",
			Help:    "Duration of ffmpeg/convert invocations used for thumbnails",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)

	ThumbnailVipsShrinkTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_thumbnail_vips_shrink_total",
			Help: "Number of images pre-shrunk with libvips before resizing",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_transcoder_jobs_total",
			Help: "Total number of transcoding jobs",
		},
		[]string{"preset", "status"},
	)

	TranscoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"preset"},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors seen",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// SoftFailure records a metadata field that was dropped during extraction.
func SoftFailure(component, field string) {
	ExtractionSoftFailures.WithLabelValues(component, field).Inc()
}

// Store metrics
var (
	StoredMetadataRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_stored_metadata_records",
			Help: "Number of metadata records in the instance store",
		},
	)

	StoredInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_stored_instances",
			Help: "Number of derived instances in the instance store by kind",
		},
		[]string{"kind"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_memory_paused",
			Help: "1 while new files are held back because memory is critical",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_memory_gc_pauses_total",
			Help: "Number of times processing was paused for memory pressure",
		},
	)
)
