package metrics

import (
	"math"
	"sort"
	"time"
)

// MaxReportedErrors caps the error messages carried by a Summary.
const MaxReportedErrors = 50

// IntervalSample describes one measurement boundary of a rate-limited run.
type IntervalSample struct {
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
	ElapsedSeconds   int       `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	TargetRPS        int       `json:"target_rps" yaml:"target_rps"`
	ObservedRequests int       `json:"actual_requests" yaml:"actual_requests"`
	Errors           int       `json:"errors" yaml:"errors"`
	AvgLatencyMs     float64   `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	P95LatencyMs     float64   `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	CumulativeSent   int64     `json:"total_sent" yaml:"total_sent"`
	CumulativeFailed int64     `json:"total_failed" yaml:"total_failed"`
}

// RateLimitStats is present only for rate-limited runs.
type RateLimitStats struct {
	TargetRPS   int     `json:"target_rps" yaml:"target_rps"`
	ActualRPS   float64 `json:"actual_rps_achieved" yaml:"actual_rps_achieved"`
	AccuracyPct float64 `json:"rps_accuracy_percentage" yaml:"rps_accuracy_percentage"`
}

// Summary is the final result of a load test.
type Summary struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Mode      string    `json:"mode" yaml:"mode"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	Sent             int64   `json:"total_events_sent" yaml:"total_events_sent"`
	Failed           int64   `json:"total_events_failed" yaml:"total_events_failed"`
	TotalTimeSeconds float64 `json:"total_time_seconds" yaml:"total_time_seconds"`

	AvgMs    float64 `json:"average_response_time_ms" yaml:"average_response_time_ms"`
	MedianMs float64 `json:"median_response_time_ms" yaml:"median_response_time_ms"`
	P50Ms    float64 `json:"p50_response_time_ms" yaml:"p50_response_time_ms"`
	P75Ms    float64 `json:"p75_response_time_ms" yaml:"p75_response_time_ms"`
	P90Ms    float64 `json:"p90_response_time_ms" yaml:"p90_response_time_ms"`
	P95Ms    float64 `json:"p95_response_time_ms" yaml:"p95_response_time_ms"`
	P99Ms    float64 `json:"p99_response_time_ms" yaml:"p99_response_time_ms"`
	MinMs    float64 `json:"min_response_time_ms" yaml:"min_response_time_ms"`
	MaxMs    float64 `json:"max_response_time_ms" yaml:"max_response_time_ms"`
	StdDevMs float64 `json:"std_dev_response_time_ms" yaml:"std_dev_response_time_ms"`

	Throughput   float64 `json:"throughput_events_per_second" yaml:"throughput_events_per_second"`
	ErrorRatePct float64 `json:"error_rate_percentage" yaml:"error_rate_percentage"`

	Errors         []string         `json:"errors" yaml:"errors"`
	ErrorBreakdown []ErrorBucket    `json:"error_breakdown,omitempty" yaml:"error_breakdown,omitempty"`
	RateLimit      *RateLimitStats  `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	TimeSeries     []IntervalSample `json:"time_series_data,omitempty" yaml:"time_series_data,omitempty"`
}

// Total is the number of completed requests.
func (s Summary) Total() int64 {
	return s.Sent + s.Failed
}

// SummaryOptions carries run context that the recorder does not know.
type SummaryOptions struct {
	Elapsed     time.Duration
	RateLimited bool
	TargetRPS   int
	Intervals   []IntervalSample
	RunID       string
	Mode        string
	StartedAt   time.Time
}

// Summarize derives the final statistics from a snapshot.
func Summarize(snap Snapshot, opts SummaryOptions) Summary {
	elapsed := opts.Elapsed.Seconds()
	s := Summary{
		RunID:            opts.RunID,
		Mode:             opts.Mode,
		StartedAt:        opts.StartedAt,
		Sent:             snap.Sent,
		Failed:           snap.Failed,
		TotalTimeSeconds: elapsed,
		Errors:           truncateErrors(snap.Errors),
		ErrorBreakdown:   FlattenErrorKinds(snap.ErrorKinds),
		TimeSeries:       append([]IntervalSample(nil), opts.Intervals...),
	}
	if opts.RateLimited {
		s.RateLimit = &RateLimitStats{TargetRPS: opts.TargetRPS}
	}

	if len(snap.Latencies) == 0 {
		s.ErrorRatePct = 100
		return s
	}

	sorted := sortedMs(snap.Latencies)
	s.AvgMs = mean(sorted)
	s.MedianMs = median(sorted)
	s.P50Ms = Percentile(sorted, 50)
	s.P75Ms = Percentile(sorted, 75)
	s.P90Ms = Percentile(sorted, 90)
	s.P95Ms = Percentile(sorted, 95)
	s.P99Ms = Percentile(sorted, 99)
	s.MinMs = sorted[0]
	s.MaxMs = sorted[len(sorted)-1]
	s.StdDevMs = sampleStdDev(sorted, s.AvgMs)

	total := snap.Sent + snap.Failed
	if elapsed > 0 {
		s.Throughput = float64(total) / elapsed
	}
	if total > 0 {
		s.ErrorRatePct = float64(snap.Failed) / float64(total) * 100
	}

	if s.RateLimit != nil {
		if elapsed > 0 {
			s.RateLimit.ActualRPS = float64(snap.Sent) / elapsed
		}
		s.RateLimit.AccuracyPct = RPSAccuracy(s.RateLimit.ActualRPS, opts.TargetRPS)
	}
	return s
}

// RPSAccuracy expresses the achieved rate as a percentage of the target.
// Without a target the accuracy is 100.
func RPSAccuracy(actual float64, target int) float64 {
	if target <= 0 {
		return 100
	}
	return actual / float64(target) * 100
}

// Percentile returns the nearest-rank percentile p (0-100) of ascending samples.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p / 100))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

func truncateErrors(errs []string) []string {
	if len(errs) > MaxReportedErrors {
		errs = errs[:MaxReportedErrors]
	}
	return append([]string{}, errs...)
}

func sortedMs(latencies []time.Duration) []float64 {
	out := make([]float64, len(latencies))
	for i, l := range latencies {
		out[i] = durationMs(l)
	}
	sort.Float64s(out)
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sampleStdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - avg
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
