package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// NoTick marks outcomes that were not issued by the rate pacer.
const NoTick = -1

// Outcome is the result of one dispatched request.
type Outcome struct {
	Latency time.Duration
	Success bool
	Err     string
	Tick    int
}

// LatencyMs returns the latency in fractional milliseconds.
func (o Outcome) LatencyMs() float64 {
	return durationMs(o.Latency)
}

// Observer is notified of every recorded outcome, outside the recorder lock.
type Observer interface {
	ObserveOutcome(o Outcome)
}

// Recorder accumulates outcomes from concurrent dispatches.
type Recorder struct {
	mu         sync.Mutex
	latencies  []time.Duration
	sent       int64
	failed     int64
	errs       []string
	errorKinds map[string]int
	ticks      map[int]*tickAccumulator
	hist       *hdrhistogram.Histogram
	observers  []Observer
}

type tickAccumulator struct {
	latencies []time.Duration
	errors    int
}

// Snapshot is an immutable copy of the recorder state.
type Snapshot struct {
	Sent       int64
	Failed     int64
	Latencies  []time.Duration
	Errors     []string
	ErrorKinds map[string]int
}

// LiveStats is a cheap running view used for progress output.
type LiveStats struct {
	Sent   int64
	Failed int64
	MeanMs float64
	P50Ms  float64
	P95Ms  float64
	P99Ms  float64
}

// TickStats aggregates the outcomes issued within a range of pacer ticks.
type TickStats struct {
	Requests     int
	Errors       int
	AvgLatencyMs float64
	P95LatencyMs float64
}

// NewRecorder creates an empty recorder.
func NewRecorder(observers ...Observer) *Recorder {
	return &Recorder{
		errorKinds: make(map[string]int),
		ticks:      make(map[int]*tickAccumulator),
		hist:       newLatencyHistogram(),
		observers:  observers,
	}
}

// Track latencies from 1µs up to 60s with 3 significant figures.
func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, 60_000_000, 3)
}

// Record stores a single outcome.
func (r *Recorder) Record(o Outcome) {
	r.mu.Lock()
	r.latencies = append(r.latencies, o.Latency)
	if o.Success {
		r.sent++
	} else {
		r.failed++
		r.errs = append(r.errs, o.Err)
		r.errorKinds[ErrorKind(o.Err)]++
	}

	if o.Tick >= 0 {
		acc := r.ticks[o.Tick]
		if acc == nil {
			acc = &tickAccumulator{}
			r.ticks[o.Tick] = acc
		}
		acc.latencies = append(acc.latencies, o.Latency)
		if !o.Success {
			acc.errors++
		}
	}

	us := o.Latency.Microseconds()
	if us < r.hist.LowestTrackableValue() {
		us = r.hist.LowestTrackableValue()
	}
	if us > r.hist.HighestTrackableValue() {
		us = r.hist.HighestTrackableValue()
	}
	_ = r.hist.RecordValue(us)
	observers := r.observers
	r.mu.Unlock()

	for _, obs := range observers {
		obs.ObserveOutcome(o)
	}
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latencies = nil
	r.sent = 0
	r.failed = 0
	r.errs = nil
	r.errorKinds = make(map[string]int)
	r.ticks = make(map[int]*tickAccumulator)
	r.hist.Reset()
}

// Counts returns the success and failure counters.
func (r *Recorder) Counts() (sent, failed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.failed
}

// Snapshot copies the current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Sent:       r.sent,
		Failed:     r.failed,
		Latencies:  append([]time.Duration(nil), r.latencies...),
		Errors:     append([]string(nil), r.errs...),
		ErrorKinds: make(map[string]int, len(r.errorKinds)),
	}
	for k, v := range r.errorKinds {
		snap.ErrorKinds[k] = v
	}
	return snap
}

// Live returns running totals and histogram percentiles.
func (r *Recorder) Live() LiveStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := LiveStats{Sent: r.sent, Failed: r.failed}
	if r.hist.TotalCount() > 0 {
		stats.MeanMs = r.hist.Mean() / 1000
		stats.P50Ms = float64(r.hist.ValueAtQuantile(50)) / 1000
		stats.P95Ms = float64(r.hist.ValueAtQuantile(95)) / 1000
		stats.P99Ms = float64(r.hist.ValueAtQuantile(99)) / 1000
	}
	return stats
}

// TakeTicks aggregates and forgets the outcomes tagged with ticks in [from, to].
func (r *Recorder) TakeTicks(from, to int) TickStats {
	r.mu.Lock()
	var latencies []time.Duration
	errs := 0
	for tick := from; tick <= to; tick++ {
		acc, ok := r.ticks[tick]
		if !ok {
			continue
		}
		latencies = append(latencies, acc.latencies...)
		errs += acc.errors
		delete(r.ticks, tick)
	}
	r.mu.Unlock()

	stats := TickStats{Requests: len(latencies), Errors: errs}
	if len(latencies) == 0 {
		return stats
	}
	sorted := sortedMs(latencies)
	stats.AvgLatencyMs = mean(sorted)
	stats.P95LatencyMs = Percentile(sorted, 95)
	return stats
}
