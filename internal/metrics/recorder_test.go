package metrics_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/torosent/ingestbench/internal/metrics"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := metrics.NewRecorder()

	r.Record(metrics.Outcome{Latency: 10 * time.Millisecond, Success: true, Tick: metrics.NoTick})
	r.Record(metrics.Outcome{Latency: 20 * time.Millisecond, Success: true, Tick: metrics.NoTick})
	r.Record(metrics.Outcome{Latency: 30 * time.Millisecond, Err: "HTTP 500: boom", Tick: metrics.NoTick})

	snap := r.Snapshot()
	if snap.Sent != 2 {
		t.Errorf("expected sent 2, got %d", snap.Sent)
	}
	if snap.Failed != 1 {
		t.Errorf("expected failed 1, got %d", snap.Failed)
	}
	if len(snap.Latencies) != 3 {
		t.Errorf("expected 3 latencies, got %d", len(snap.Latencies))
	}
	if len(snap.Errors) != 1 || snap.Errors[0] != "HTTP 500: boom" {
		t.Errorf("unexpected errors %v", snap.Errors)
	}
	if snap.ErrorKinds["HTTP 500"] != 1 {
		t.Errorf("expected HTTP 500 kind, got %v", snap.ErrorKinds)
	}
}

func TestRecorderConcurrentInvariant(t *testing.T) {
	r := metrics.NewRecorder()

	var wg sync.WaitGroup
	workers := 16
	perWorker := 250

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				o := metrics.Outcome{Latency: time.Duration(j+1) * time.Microsecond, Success: true, Tick: worker % 3}
				if j%5 == 0 {
					o.Success = false
					o.Err = fmt.Sprintf("Exception: failure %d", j)
				}
				r.Record(o)
			}
		}(i)
	}
	wg.Wait()

	snap := r.Snapshot()
	expected := workers * perWorker
	if int(snap.Sent+snap.Failed) != expected {
		t.Fatalf("expected %d outcomes, got %d", expected, snap.Sent+snap.Failed)
	}
	if len(snap.Latencies) != expected {
		t.Fatalf("expected %d latencies, got %d", expected, len(snap.Latencies))
	}
	if int(snap.Failed) != len(snap.Errors) {
		t.Fatalf("failed=%d but %d error strings", snap.Failed, len(snap.Errors))
	}
}

func TestRecorderReset(t *testing.T) {
	r := metrics.NewRecorder()
	r.Record(metrics.Outcome{Latency: time.Millisecond, Err: "Exception: x", Tick: 0})
	r.Reset()

	snap := r.Snapshot()
	if snap.Sent != 0 || snap.Failed != 0 || len(snap.Latencies) != 0 || len(snap.Errors) != 0 {
		t.Fatalf("expected empty snapshot after reset, got %+v", snap)
	}
	if got := r.TakeTicks(0, 0); got.Requests != 0 {
		t.Fatalf("expected tick data cleared, got %+v", got)
	}
	if live := r.Live(); live.Sent != 0 || live.P99Ms != 0 {
		t.Fatalf("expected live stats cleared, got %+v", live)
	}
}

func TestRecorderSnapshotIsCopy(t *testing.T) {
	r := metrics.NewRecorder()
	r.Record(metrics.Outcome{Latency: time.Millisecond, Success: true, Tick: metrics.NoTick})

	snap := r.Snapshot()
	r.Record(metrics.Outcome{Latency: 2 * time.Millisecond, Success: true, Tick: metrics.NoTick})

	if len(snap.Latencies) != 1 {
		t.Fatalf("snapshot changed after later record: %d samples", len(snap.Latencies))
	}
}

func TestRecorderTakeTicksAggregatesByIssueTick(t *testing.T) {
	r := metrics.NewRecorder()
	for i := 1; i <= 20; i++ {
		r.Record(metrics.Outcome{Latency: time.Duration(i) * time.Millisecond, Success: true, Tick: 1})
	}
	r.Record(metrics.Outcome{Latency: 500 * time.Millisecond, Err: "HTTP 503: busy", Tick: 2})

	tick1 := r.TakeTicks(1, 1)
	if tick1.Requests != 20 {
		t.Fatalf("expected 20 requests in tick 1, got %d", tick1.Requests)
	}
	if tick1.Errors != 0 {
		t.Fatalf("expected no errors in tick 1, got %d", tick1.Errors)
	}
	if tick1.AvgLatencyMs != 10.5 {
		t.Fatalf("expected avg 10.5ms, got %v", tick1.AvgLatencyMs)
	}
	// floor(20*0.95) = 19 -> 20ms
	if tick1.P95LatencyMs != 20 {
		t.Fatalf("expected p95 20ms, got %v", tick1.P95LatencyMs)
	}

	tick2 := r.TakeTicks(2, 2)
	if tick2.Requests != 1 || tick2.Errors != 1 {
		t.Fatalf("unexpected tick 2 stats %+v", tick2)
	}

	if again := r.TakeTicks(1, 2); again.Requests != 0 {
		t.Fatalf("expected ticks to be consumed, got %+v", again)
	}
}

func TestRecorderUntaggedOutcomesSkipTicks(t *testing.T) {
	r := metrics.NewRecorder()
	r.Record(metrics.Outcome{Latency: time.Millisecond, Success: true, Tick: metrics.NoTick})
	if got := r.TakeTicks(0, 10); got.Requests != 0 {
		t.Fatalf("expected no tick data, got %+v", got)
	}
}

func TestRecorderLivePercentiles(t *testing.T) {
	r := metrics.NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(metrics.Outcome{Latency: time.Duration(i) * time.Millisecond, Success: true, Tick: metrics.NoTick})
	}

	live := r.Live()
	if live.Sent != 100 {
		t.Errorf("expected 100 sent, got %d", live.Sent)
	}
	if live.P50Ms < 49 || live.P50Ms > 51 {
		t.Errorf("expected P50 ~50ms, got %.2f", live.P50Ms)
	}
	if live.P99Ms < 98 || live.P99Ms > 100.5 {
		t.Errorf("expected P99 ~99ms, got %.2f", live.P99Ms)
	}
}

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (c *countingObserver) ObserveOutcome(metrics.Outcome) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func TestRecorderNotifiesObservers(t *testing.T) {
	obs := &countingObserver{}
	r := metrics.NewRecorder(obs)
	r.Record(metrics.Outcome{Latency: time.Millisecond, Success: true, Tick: metrics.NoTick})
	r.Record(metrics.Outcome{Latency: time.Millisecond, Err: "Exception: x", Tick: metrics.NoTick})

	if obs.count != 2 {
		t.Fatalf("expected 2 observations, got %d", obs.count)
	}
}
