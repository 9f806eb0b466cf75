package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/ingestbench/internal/metrics"
)

// LiveSource supplies running totals for the progress line.
type LiveSource interface {
	Live() metrics.LiveStats
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   LiveSource
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source LiveSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, progressLine(p.source.Live(), time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func progressLine(stats metrics.LiveStats, elapsed time.Duration) string {
	rps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rps = float64(stats.Sent+stats.Failed) / secs
	}
	return fmt.Sprintf("\rSent: %d | Failed: %d | RPS: %.1f | Avg: %.1fms | P95: %.1fms",
		stats.Sent, stats.Failed, rps, stats.MeanMs, stats.P95Ms)
}
