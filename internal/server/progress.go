package server

import (
	"sync"
	"time"

	"media-pipeline/internal/pipeline"
)

// Progress tracks a pipeline run for the health endpoint. It is safe for
// concurrent use; Record is meant to be a pipeline OnReport hook.
type Progress struct {
	mu       sync.RWMutex
	started  time.Time
	total    int
	finished int
	totals   pipeline.Totals
	running  bool
}

// NewProgress creates an idle Progress.
func NewProgress() *Progress {
	return &Progress{started: time.Now()}
}

// Begin marks the start of a run over total files.
func (p *Progress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.finished = 0
	p.totals = pipeline.Totals{}
	p.running = true
}

// Record counts one finished file.
func (p *Progress) Record(r *pipeline.Report) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
	switch r.Outcome() {
	case "done":
		p.totals.Done++
	case "skipped":
		p.totals.Skipped++
	default:
		p.totals.Failed++
	}
}

// End marks the run as finished.
func (p *Progress) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Snapshot is a point-in-time view of a Progress.
type Snapshot struct {
	Running  bool
	Total    int
	Finished int
	Totals   pipeline.Totals
	Uptime   time.Duration
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Running:  p.running,
		Total:    p.total,
		Finished: p.finished,
		Totals:   p.totals,
		Uptime:   time.Since(p.started),
	}
}
