// Package server is the optional status server of a pipeline run.
//
// When METRICS_ENABLED is set the CLI serves, for the length of the run:
//   - /metrics: Prometheus metrics
//   - /health: run progress as JSON
//   - /livez: liveness probe
//   - /version: build information
//
// Requests are logged at debug level.
package server
