// Package metrics provides Prometheus instrumentation for the media pipeline.
//
// All metrics are registered with promauto at package init and prefixed with
// "media_pipeline_".
//
// # Metric Categories
//
// ## Pipeline Metrics
//
//   - PipelineFilesTotal: Counter of processed files by outcome (done/failed/skipped)
//   - PipelineStageDuration: Histogram of stage durations
//   - PipelineFilesInFlight: Gauge of files currently in a worker
//   - PipelineWorkers: Gauge of pool size
//   - PipelineLastRunDuration: Gauge of the last batch duration
//
// ## Extraction Metrics
//
//   - ExtractionSoftFailures: Counter of dropped metadata fields by component and field
//   - ProbeInvocationsTotal: Counter of ffprobe runs by status
//   - ProbeDuration: Histogram of ffprobe run time
//   - MetadataResolvedTotal: Counter of resolved records by media type
//
// ## Thumbnail and Transcoder Metrics
//
//   - ThumbnailGenerationsTotal / ThumbnailGenerationDuration by source kind
//   - ThumbnailExternalToolDuration for ffmpeg frame grabs and convert
//   - TranscoderJobsTotal / TranscoderJobDuration by preset
//   - TranscoderJobsInProgress
//
// ## Store and Filesystem Metrics
//
//   - DBQueryTotal / DBQueryDuration by operation
//   - StoredMetadataRecords / StoredInstances, refreshed by Collector
//   - FilesystemRetry*: NFS retry counters, fed through NewFilesystemObserver
//
// ## Memory Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses from memory.Monitor
//
// # Usage
//
//	metrics.InitializeMetrics()
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	http.Handle("/metrics", promhttp.Handler())
package metrics
