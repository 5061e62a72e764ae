/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Media libraries commonly live on NFS mounts. Stat, open, rename and remove are
wrapped so that ESTALE (errno 116) is retried with exponential backoff, while
every other error fails immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

RenameWithRetry also handles moves between devices, which happens when the
work directory and the output directory are on different mounts.

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

# Metrics

Retry counters are reported through an Observer (see metrics.NewFilesystemObserver),
labelled with a volume name resolved by longest-prefix match over the
configured source, work, output and database directories.
*/
package filesystem
