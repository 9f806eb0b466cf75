package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/torosent/ingestbench/internal/metrics"
)

func sampleSummary() metrics.Summary {
	return metrics.Summary{
		RunID:            "01J9Z3K5W6X7Y8Z9A0B1C2D3E4",
		Mode:             "batch",
		Sent:             990,
		Failed:           10,
		TotalTimeSeconds: 2,
		AvgMs:            42.5,
		MedianMs:         40,
		P50Ms:            40,
		P75Ms:            55,
		P90Ms:            70,
		P95Ms:            80,
		P99Ms:            120,
		MinMs:            3,
		MaxMs:            150,
		StdDevMs:         12.25,
		Throughput:       495,
		ErrorRatePct:     1,
		Errors:           []string{"HTTP 500: boom", "context deadline exceeded"},
		ErrorBreakdown:   []metrics.ErrorBucket{{Kind: "HTTP 500", Count: 9}, {Kind: "Timeout", Count: 1}},
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleSummary(), nil)

	output := buf.String()
	for _, want := range []string{
		"EVENT INGESTION BENCHMARK RESULTS",
		"Total Events Sent:     990",
		"Total Events Failed:   10",
		"Throughput:            495.00 events/second",
		"Error Rate:            1.00%",
		"95th Percentile:       80.00 ms",
		"Std Deviation:         12.25 ms",
		"1. HTTP 500: boom",
		"HTTP 500: 9",
		"PERFORMANCE ASSESSMENT:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(output, "RATE LIMITING") {
		t.Error("batch run must not print the rate limiting section")
	}
	if strings.Contains(output, "TIME SERIES DATA") {
		t.Error("batch run must not print the time series section")
	}
}

func TestPrintReportRateLimited(t *testing.T) {
	s := sampleSummary()
	s.Mode = "rate"
	s.RateLimit = &metrics.RateLimitStats{TargetRPS: 100, ActualRPS: 97.5, AccuracyPct: 97.5}
	s.TimeSeries = []metrics.IntervalSample{
		{ElapsedSeconds: 1, ObservedRequests: 100, AvgLatencyMs: 10},
		{ElapsedSeconds: 2, ObservedRequests: 95, AvgLatencyMs: 20},
		{ElapsedSeconds: 3, ObservedRequests: 0},
	}

	var buf bytes.Buffer
	PrintReport(&buf, s, nil)

	output := buf.String()
	for _, want := range []string{
		"Target RPS:            100",
		"Actual RPS:            97.50",
		"RPS Accuracy:          97.5%",
		"Data Points Collected: 3",
		"Avg Interval RPS:      65.0",
		"Avg Interval Latency:  15.00 ms",
		"Rate limiting accuracy is excellent",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestPrintReportTruncatesErrors(t *testing.T) {
	s := sampleSummary()
	s.Errors = nil
	for i := 0; i < 25; i++ {
		s.Errors = append(s.Errors, fmt.Sprintf("error %d", i))
	}

	var buf bytes.Buffer
	PrintReport(&buf, s, nil)

	output := buf.String()
	if !strings.Contains(output, "10. error 9") {
		t.Error("expected the tenth error to be listed")
	}
	if strings.Contains(output, "error 10\n") {
		t.Error("errors beyond the first ten must not be listed")
	}
	if !strings.Contains(output, "... and 15 more errors") {
		t.Error("expected the remaining error count")
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name    string
		summary metrics.Summary
		want    []Level
	}{
		{
			name:    "healthy run",
			summary: metrics.Summary{ErrorRatePct: 0.05, AvgMs: 20, P95Ms: 50, Throughput: 2000},
			want:    []Level{LevelGood, LevelGood, LevelGood, LevelGood},
		},
		{
			name:    "degraded run",
			summary: metrics.Summary{ErrorRatePct: 3, AvgMs: 300, P95Ms: 600, Throughput: 80},
			want:    []Level{LevelWarn, LevelWarn, LevelWarn, LevelWarn},
		},
		{
			name: "failing rate-limited run",
			summary: metrics.Summary{
				ErrorRatePct: 10, AvgMs: 900, P95Ms: 2000, Throughput: 10,
				RateLimit: &metrics.RateLimitStats{TargetRPS: 100, AccuracyPct: 40},
			},
			want: []Level{LevelBad, LevelBad, LevelBad, LevelBad, LevelBad},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.summary)
			if len(got) != len(tt.want) {
				t.Fatalf("Assess() returned %d verdicts, want %d", len(got), len(tt.want))
			}
			for i, v := range got {
				if v.Level != tt.want[i] {
					t.Errorf("verdict[%d] %q level = %d, want %d", i, v.Text, v.Level, tt.want[i])
				}
			}
		})
	}
}

func TestPrintJSONReport(t *testing.T) {
	s := sampleSummary()
	s.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, s); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["total_events_sent"] != float64(990) {
		t.Errorf("total_events_sent = %v", decoded["total_events_sent"])
	}
	if decoded["p95_response_time_ms"] != float64(80) {
		t.Errorf("p95_response_time_ms = %v", decoded["p95_response_time_ms"])
	}
	if _, ok := decoded["rate_limit"]; ok {
		t.Error("rate_limit must be omitted for batch runs")
	}
}

func TestNoColorSchemeHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleSummary(), NoColorScheme())
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("NoColorScheme output contains ANSI escapes")
	}

	buf.Reset()
	PrintReport(&buf, sampleSummary(), DefaultColorScheme())
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("DefaultColorScheme output has no ANSI escapes")
	}
}
