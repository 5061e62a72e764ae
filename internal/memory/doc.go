// Package memory configures the Go memory limit for containers and holds
// back pipeline work under memory pressure.
//
// # GOMEMLIMIT
//
// Go does not read the cgroup memory limit. [ConfigureFromEnv] derives
// GOMEMLIMIT from the environment and should run first in main:
//
//   - GOMEMLIMIT: standard Go variable; takes precedence when set
//   - MEMORY_LIMIT: container limit in bytes, usually from the Kubernetes
//     Downward API (resourceFieldRef limits.memory)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap, default 0.75
//
// The default ratio is lower than for a pure Go program because ffmpeg,
// ImageMagick and libvips allocate outside the Go heap.
//
// # Backpressure
//
// A [Monitor] samples heap allocation. Above the critical water mark it
// pauses; [Monitor.Wait] then blocks until usage falls below the high
// water mark. The pipeline waits on it before starting each file:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start(ctx)
//	coord, err := pipeline.New(pipeline.Config{Gate: monitor, ...})
package memory
