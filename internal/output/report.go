package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/torosent/ingestbench/internal/metrics"
)

const reportedErrors = 10

// Level grades one aspect of a run.
type Level int

const (
	LevelGood Level = iota
	LevelWarn
	LevelBad
)

// Verdict is one line of the performance assessment.
type Verdict struct {
	Level Level
	Text  string
}

// Assess grades error rate, average and p95 latency, throughput and, for
// rate-limited runs, rate accuracy.
func Assess(s metrics.Summary) []Verdict {
	verdicts := make([]Verdict, 0, 5)

	switch e := s.ErrorRatePct; {
	case e < 0.1:
		verdicts = append(verdicts, Verdict{LevelGood, "Error rate is exceptional (< 0.1%)"})
	case e < 1:
		verdicts = append(verdicts, Verdict{LevelGood, "Error rate is excellent (< 1%)"})
	case e < 5:
		verdicts = append(verdicts, Verdict{LevelWarn, "Error rate is acceptable (< 5%)"})
	default:
		verdicts = append(verdicts, Verdict{LevelBad, "Error rate is high (>= 5%)"})
	}

	switch avg := s.AvgMs; {
	case avg < 50:
		verdicts = append(verdicts, Verdict{LevelGood, "Average latency is exceptional (< 50ms)"})
	case avg < 100:
		verdicts = append(verdicts, Verdict{LevelGood, "Average latency is excellent (< 100ms)"})
	case avg < 250:
		verdicts = append(verdicts, Verdict{LevelWarn, "Average latency is acceptable (< 250ms)"})
	case avg < 500:
		verdicts = append(verdicts, Verdict{LevelWarn, "Average latency is slow (< 500ms)"})
	default:
		verdicts = append(verdicts, Verdict{LevelBad, "Average latency is very slow (>= 500ms)"})
	}

	switch p95 := s.P95Ms; {
	case p95 < 100:
		verdicts = append(verdicts, Verdict{LevelGood, "P95 latency is excellent (< 100ms)"})
	case p95 < 250:
		verdicts = append(verdicts, Verdict{LevelWarn, "P95 latency is acceptable (< 250ms)"})
	case p95 < 1000:
		verdicts = append(verdicts, Verdict{LevelWarn, "P95 latency is slow (< 1000ms)"})
	default:
		verdicts = append(verdicts, Verdict{LevelBad, "P95 latency is very slow (>= 1000ms)"})
	}

	switch tp := s.Throughput; {
	case tp > 1000:
		verdicts = append(verdicts, Verdict{LevelGood, "Throughput is exceptional (> 1000 events/s)"})
	case tp > 500:
		verdicts = append(verdicts, Verdict{LevelGood, "Throughput is excellent (> 500 events/s)"})
	case tp > 100:
		verdicts = append(verdicts, Verdict{LevelWarn, "Throughput is good (> 100 events/s)"})
	case tp > 50:
		verdicts = append(verdicts, Verdict{LevelWarn, "Throughput is acceptable (> 50 events/s)"})
	default:
		verdicts = append(verdicts, Verdict{LevelBad, "Throughput is low (<= 50 events/s)"})
	}

	if s.RateLimit != nil {
		switch acc := s.RateLimit.AccuracyPct; {
		case acc > 95:
			verdicts = append(verdicts, Verdict{LevelGood, "Rate limiting accuracy is excellent (> 95%)"})
		case acc > 85:
			verdicts = append(verdicts, Verdict{LevelWarn, "Rate limiting accuracy is acceptable (> 85%)"})
		default:
			verdicts = append(verdicts, Verdict{LevelBad, "Rate limiting accuracy is poor (<= 85%)"})
		}
	}
	return verdicts
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s metrics.Summary, scheme *ColorScheme) {
	if scheme == nil {
		scheme = NoColorScheme()
	}
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	scheme.Title.Fprintln(w, "             EVENT INGESTION BENCHMARK RESULTS")
	fmt.Fprintln(w, rule)

	section(w, scheme, "SUMMARY")
	fmt.Fprintf(w, "  Total Events Sent:     %d\n", s.Sent)
	fmt.Fprintf(w, "  Total Events Failed:   %d\n", s.Failed)
	fmt.Fprintf(w, "  Total Test Time:       %.2f seconds\n", s.TotalTimeSeconds)
	fmt.Fprintf(w, "  Throughput:            %.2f events/second\n", s.Throughput)
	fmt.Fprintf(w, "  Error Rate:            %.2f%%\n", s.ErrorRatePct)
	if s.RunID != "" {
		fmt.Fprintf(w, "  Run ID:                %s (%s mode)\n", s.RunID, s.Mode)
	}

	if s.RateLimit != nil {
		section(w, scheme, "RATE LIMITING")
		fmt.Fprintf(w, "  Target RPS:            %d\n", s.RateLimit.TargetRPS)
		fmt.Fprintf(w, "  Actual RPS:            %.2f\n", s.RateLimit.ActualRPS)
		fmt.Fprintf(w, "  RPS Accuracy:          %.1f%%\n", s.RateLimit.AccuracyPct)
	}

	section(w, scheme, "RESPONSE TIMES")
	fmt.Fprintf(w, "  Average:               %.2f ms\n", s.AvgMs)
	fmt.Fprintf(w, "  Median:                %.2f ms\n", s.MedianMs)
	fmt.Fprintf(w, "  75th Percentile:       %.2f ms\n", s.P75Ms)
	fmt.Fprintf(w, "  90th Percentile:       %.2f ms\n", s.P90Ms)
	fmt.Fprintf(w, "  95th Percentile:       %.2f ms\n", s.P95Ms)
	fmt.Fprintf(w, "  99th Percentile:       %.2f ms\n", s.P99Ms)
	fmt.Fprintf(w, "  Min:                   %.2f ms\n", s.MinMs)
	fmt.Fprintf(w, "  Max:                   %.2f ms\n", s.MaxMs)
	fmt.Fprintf(w, "  Std Deviation:         %.2f ms\n", s.StdDevMs)

	if len(s.TimeSeries) > 0 {
		section(w, scheme, "TIME SERIES DATA")
		rps, latency := intervalAverages(s.TimeSeries)
		fmt.Fprintf(w, "  Data Points Collected: %d\n", len(s.TimeSeries))
		fmt.Fprintf(w, "  Avg Interval RPS:      %.1f\n", rps)
		fmt.Fprintf(w, "  Avg Interval Latency:  %.2f ms\n", latency)
	}

	if len(s.Errors) > 0 {
		section(w, scheme, fmt.Sprintf("ERRORS (showing first %d)", reportedErrors))
		for i, msg := range s.Errors[:min(reportedErrors, len(s.Errors))] {
			fmt.Fprintf(w, "  %d. %s\n", i+1, msg)
		}
		if len(s.Errors) > reportedErrors {
			fmt.Fprintf(w, "  ... and %d more errors\n", len(s.Errors)-reportedErrors)
		}
		if len(s.ErrorBreakdown) > 0 {
			fmt.Fprintln(w, "  By kind:")
			for _, b := range s.ErrorBreakdown {
				fmt.Fprintf(w, "    %s: %d\n", b.Kind, b.Count)
			}
		}
	}

	section(w, scheme, "PERFORMANCE ASSESSMENT")
	for _, v := range Assess(s) {
		c, icon := scheme.forLevel(v.Level)
		fmt.Fprintf(w, "  %s %s\n", c.Sprint(icon), v.Text)
	}
	fmt.Fprintln(w, rule)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s metrics.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func section(w io.Writer, scheme *ColorScheme, title string) {
	fmt.Fprintln(w)
	scheme.Section.Fprintf(w, "%s:\n", title)
}

func (s *ColorScheme) forLevel(l Level) (*color.Color, string) {
	switch l {
	case LevelGood:
		return s.Good, "✓"
	case LevelWarn:
		return s.Warn, "!"
	default:
		return s.Bad, "✗"
	}
}

// intervalAverages returns the mean observed requests per interval and the
// mean latency over intervals that saw any traffic.
func intervalAverages(samples []metrics.IntervalSample) (rps, latencyMs float64) {
	var requests, latencySum float64
	withLatency := 0
	for _, s := range samples {
		requests += float64(s.ObservedRequests)
		if s.AvgLatencyMs > 0 {
			latencySum += s.AvgLatencyMs
			withLatency++
		}
	}
	rps = requests / float64(len(samples))
	if withLatency > 0 {
		latencyMs = latencySum / float64(withLatency)
	}
	return rps, latencyMs
}
