package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"media-pipeline/internal/metrics"
	"media-pipeline/internal/workers"
)

// maxWorkers caps the automatically sized file pool.
const maxWorkers = 16

// Run processes paths with a bounded pool of workers and returns one report
// per path, in input order. Files are independent: a failure in one never
// affects another. Once ctx is done, paths not yet started are reported as
// failed without being touched.
func (c *Coordinator) Run(ctx context.Context, paths []string, opts Options) []*Report {
	start := time.Now()
	n := c.poolSize(len(paths))
	metrics.PipelineWorkers.Set(float64(n))
	log.Info("processing %d files with %d workers", len(paths), n)

	reports := make([]*Report, len(paths))
	var g errgroup.Group
	g.SetLimit(n)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			reports[i] = c.finish((&Report{Path: path}).fail(StateNew, err))
			continue
		}
		g.Go(func() error {
			if c.gate != nil {
				if err := c.gate.Wait(ctx); err != nil {
					reports[i] = c.finish((&Report{Path: path}).fail(StateNew, err))
					return nil
				}
			}
			fileCtx, cancel := c.fileContext(ctx)
			defer cancel()
			reports[i] = c.finish(c.Process(fileCtx, path, opts))
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.PipelineLastRunDuration.Set(elapsed.Seconds())

	t := Tally(reports)
	log.Info("run finished in %v: %d done, %d skipped, %d failed",
		elapsed.Round(time.Millisecond), t.Done, t.Skipped, t.Failed)
	return reports
}

func (c *Coordinator) finish(r *Report) *Report {
	if c.onReport != nil {
		c.onReport(r)
	}
	return r
}

func (c *Coordinator) poolSize(files int) int {
	n := c.workers
	if n <= 0 {
		n = workers.ForMixed(maxWorkers)
	}
	if files > 0 && n > files {
		n = files
	}
	return n
}

func (c *Coordinator) fileContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.fileTimeout > 0 {
		return context.WithTimeout(ctx, c.fileTimeout)
	}
	return context.WithCancel(ctx)
}

// Totals counts reports by outcome.
type Totals struct {
	Done    int
	Skipped int
	Failed  int
}

// Tally counts the outcomes of reports. Nil entries are ignored.
func Tally(reports []*Report) Totals {
	var t Totals
	for _, r := range reports {
		if r == nil {
			continue
		}
		switch r.Outcome() {
		case "failed":
			t.Failed++
		case "skipped":
			t.Skipped++
		default:
			t.Done++
		}
	}
	return t
}
