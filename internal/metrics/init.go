package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"done", "failed", "skipped"} {
		PipelineFilesTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"probed", "metadata_resolved", "instances_generated", "thumbnail_generated"} {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, status := range []string{"success", "tool_missing", "tool_failure"} {
		ProbeInvocationsTotal.WithLabelValues(status)
	}

	for _, t := range []string{"image", "video", "audio", "pdf", "other"} {
		MetadataResolvedTotal.WithLabelValues(t)
	}

	// --- Thumbnails by source kind ---
	for _, t := range []string{"image", "video", "pdf"} {
		ThumbnailGenerationDuration.WithLabelValues(t)
		for _, status := range []string{"success", "error", "error_corrupt", "error_tool", "error_encode"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, status)
		}
	}
	for _, tool := range []string{"ffmpeg", "convert"} {
		ThumbnailExternalToolDuration.WithLabelValues(tool)
	}

	// --- Soft extraction failures ---
	softFields := map[string][]string{
		"exif":     {"decode", "gps", "altitude", "direction", "gpstime", "capture_time", "rational", "iptc"},
		"probe":    {"geo", "creation_time", "framerate"},
		"metadata": {"hash", "audio_tags"},
	}
	for component, fields := range softFields {
		for _, f := range fields {
			ExtractionSoftFailures.WithLabelValues(component, f)
		}
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	volumes := []string{"source", "work", "output", "database", "unknown"}
	for _, op := range []string{"stat", "open", "rename", "remove"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "list_instances", "save_instance",
		"delete_instance", "save_metadata", "get_metadata", "get_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
