/*
Package pipeline sequences the per-file work: resolve metadata, generate
transcoded instances, generate the thumbnail.

A file moves through the states

	new → probed → metadata_resolved → instances_generated → thumbnail_generated → done

or ends in failed, with Report.FailedStage naming the stage that could not
be completed. A failed metadata resolution, a store error, a missing
ffmpeg or ffprobe binary, or a cancelled context fail a file. A parameter
set whose ffmpeg run fails or whose output cannot be re-probed, or a
thumbnail that cannot be rendered, is recorded in Report.Failures and the
run continues.

# Idempotence

A source that already has derived instances is skipped before its
metadata is resolved, so no subprocess starts and the stored record is
left alone. With Options.Redo the existing files are removed, then
their records, and everything is generated again. Instance records are
never updated in place.

# Concurrency

Run processes files with a pool sized by workers.ForMixed (or
Config.Workers). Within one file the stages are sequential; the parameter
sets of a file run concurrently, bounded by Config.Parallelism. Every
output gets a fresh uuid-named path, so workers never share files.

Before a file starts, Run waits on Config.Gate (memory.Monitor in the CLI)
so new work is held back under memory pressure. Config.OnReport sees each
report as its file finishes.

# Persistence

InstanceStore is implemented by database.Database. Tests use an in-memory
fake.
*/
package pipeline
