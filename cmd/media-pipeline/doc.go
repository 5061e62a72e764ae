// Command media-pipeline extracts metadata from media files and generates
// their derived instances: transcoded renditions and thumbnails.
//
// Usage:
//
//	media-pipeline <command> [flags] [args]
//
// Commands:
//
//	run <path>...  Walk the given files and directories and process every
//	               source file. Files that already have instances are
//	               skipped unless -redo is given. Prints one line per file
//	               and exits non-zero when any file failed.
//
//	show <path>    Print the stored metadata and instances of a source file
//	               as JSON.
//
//	stats          Print the number of stored metadata records and
//	               instances per kind.
//
//	version        Print build information.
//
// Flags of run:
//
//	-config   YAML configuration file (default $PIPELINE_CONFIG)
//	-redo     regenerate existing instances
//	-rotate   thumbnail rotation overriding the orientation tag
//	-workers  files processed at once
//
// Configuration is read from the YAML file and the environment; run
// 'media-pipeline run -h' for the full list of variables. With
// METRICS_ENABLED=true a status server on METRICS_PORT serves /metrics and
// /health for the length of the run.
//
// GOMEMLIMIT is derived from MEMORY_LIMIT and MEMORY_RATIO before anything
// else runs; see package memory.
package main
