/*
Package workers sizes worker pools from the CPUs the process may actually use.

Inside a container runtime.NumCPU reports the host's CPU count while
GOMAXPROCS follows the cgroup limit (Go 1.19+). Pool sizes here are derived
from GOMAXPROCS so a pipeline run on a 2-CPU pod does not start 64 ffmpeg
processes.

# Usage

	import "media-pipeline/internal/workers"

	// one worker per CPU, at most 8
	n := workers.ForCPU(8)

	// two per CPU, for filesystem and database heavy work
	n := workers.ForIO(16)

	// 1.5 per CPU; the file pool of a pipeline run
	n := workers.ForMixed(12)

	// custom multiplier, 0 means no upper limit
	n := workers.Count(3.0, 0)

Every result is at least 1.

# Override

PIPELINE_WORKERS fixes the count for all helpers. The multiplier is ignored
but the limit still caps it. Values that are not positive integers are
ignored.

	env:
	- name: PIPELINE_WORKERS
	  value: "4"

With a CPU limit of 2 and no override, ForCPU(8) returns 2, ForIO(8)
returns 4 and ForMixed(8) returns 3.
*/
package workers
