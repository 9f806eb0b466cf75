package runner_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/metrics"
)

func newProducer(t *testing.T) event.Producer {
	t.Helper()
	gen, err := event.NewGenerator("", true)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

// fakeSender simulates a dispatch with a fixed latency and records into a recorder.
type fakeSender struct {
	recorder *metrics.Recorder
	latency  time.Duration
	fail     bool

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	mu     sync.Mutex
	issued []issued
}

type issued struct {
	at   time.Time
	tick int
}

func (f *fakeSender) Dispatch(_ context.Context, _ event.Event, tick int) metrics.Outcome {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if cur <= peak || f.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
	f.mu.Lock()
	f.issued = append(f.issued, issued{at: time.Now(), tick: tick})
	f.mu.Unlock()

	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	f.inFlight.Add(-1)

	o := metrics.Outcome{Latency: f.latency, Success: !f.fail, Tick: tick}
	if f.fail {
		o.Err = "HTTP 500: boom"
	}
	f.recorder.Record(o)
	return o
}

func (f *fakeSender) perTick() map[int]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[int]int{}
	for _, i := range f.issued {
		counts[i.tick]++
	}
	return counts
}

func (f *fakeSender) issueTimes(tick int) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, i := range f.issued {
		if i.tick == tick {
			out = append(out, i.at)
		}
	}
	return out
}

// tickLog captures the scheduled count announced for every tick.
type tickLog struct {
	mu        sync.Mutex
	scheduled map[int]int
}

func (l *tickLog) TickStarted(tick, scheduled int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scheduled == nil {
		l.scheduled = map[int]int{}
	}
	l.scheduled[tick] = scheduled
}

func (l *tickLog) at(tick int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scheduled[tick]
}
