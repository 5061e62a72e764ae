// Package logging provides a simple leveled logging interface for the
// media pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions, including soft extraction failures
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// Level tags are colored when stderr is a terminal. Pipeline components
// use Named loggers so each line carries the component that emitted it.
package logging
