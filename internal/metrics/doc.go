// Package metrics records request outcomes during a load test and turns them into
// result summaries.
//
// # Recorder
//
// A [Recorder] is shared by every in-flight dispatch. Each completed request reports
// one [Outcome]:
//
//	rec := metrics.NewRecorder()
//	rec.Record(metrics.Outcome{Latency: 12 * time.Millisecond, Success: true, Tick: metrics.NoTick})
//
// All mutation happens under a single mutex, so after every dispatch has been joined
// the recorder satisfies sent + failed == number of latency samples. [Recorder.Reset]
// clears the state after warm-up traffic.
//
// Outcomes issued by the rate pacer carry the tick they were issued in, which lets
// [Recorder.TakeTicks] aggregate interval statistics exactly instead of guessing from
// the tail of the latency history.
//
// # Summaries
//
// [Summarize] converts a [Snapshot] into a [Summary]. Percentiles use the nearest-rank
// method over the sorted samples: index floor(n*p/100), clamped to n-1. A run without
// samples produces a degenerate summary with a 100% error rate.
//
// Rate-limited runs attach a [RateLimitStats] block with the achieved rate and its
// accuracy relative to the target.
package metrics
