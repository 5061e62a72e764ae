// Package startup loads the pipeline configuration and provides the
// startup, run and shutdown logging of the CLI.
//
// # Configuration
//
// [Config] is read with cleanenv from an optional YAML file overlaid by
// environment variables. [ReadConfig] only parses and validates;
// [LoadConfig] also prints the banner, logs every value and prepares the
// directories.
//
//   - FFPROBE_PATH, FFMPEG_PATH, CONVERT_PATH: external tools
//   - WORK_DIR: temporary outputs (default: <tmp>/media-pipeline)
//   - OUTPUT_DIR: derived instances (default: ./instances)
//   - DATABASE_PATH: SQLite file (default: ./media-pipeline.db)
//   - THUMBNAIL_WIDTH, THUMBNAIL_HEIGHT: bounding box (default: 1600x1600)
//   - THUMBNAIL_QUALITY, THUMBNAIL_FORMAT: encoding (default: 90, jpeg)
//   - THUMBNAIL_SEEK: video frame offset (default: 1s)
//   - USE_VIPS: libvips pre-shrink of large images (default: true)
//   - VIDEO_MIN_DURATION: seconds a video stream must exceed (default: 1.0)
//   - PIPELINE_WORKERS: files at once, 0 sizes from CPUs (default: 0)
//   - TRANSCODE_PARALLELISM: renditions of one file at once (default: 2)
//   - FILE_TIMEOUT: limit per file, 0 means none (default: 0s)
//   - REDO, HASH_FILES, AUDIO_TAGS: per-run policy
//   - METRICS_ENABLED, METRICS_PORT: status server (default: false, 9090)
//
// YAML keys use the snake_case names in the struct tags; thumbnail
// settings nest under "thumbnail". The environment always wins over the
// file.
//
// # Directory Setup
//
// The work and output directories and the database directory are made
// absolute, created when missing and checked for write access.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
