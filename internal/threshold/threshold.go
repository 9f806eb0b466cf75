package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/ingestbench/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // "latency", "errors", "requests" or "rps"
	Aggregate string  // e.g. "p95", "avg", "rate", "accuracy"
	Operator  string  // "<", "<=", ">", ">=", "=="
	Value     float64 // compared against the summary value
	Raw       string  // original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a run summary.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the summary.
func (e *Evaluator) Evaluate(s metrics.Summary) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, s))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, s metrics.Summary) Result {
	actual, err := extractMetricValue(t, s)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// aggregates lists the aggregates each metric supports.
var aggregates = map[string][]string{
	"latency":  {"p50", "p75", "p90", "p95", "p99", "avg", "median", "min", "max", "stddev"},
	"errors":   {"rate", "count"},
	"requests": {"rate", "count"},
	"rps":      {"actual", "accuracy"},
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
//   - "latency:p95 < 500"       (latency in ms; p50 p75 p90 p95 p99 avg median min max stddev)
//   - "errors:rate < 1"         (error rate in percent)
//   - "errors:count == 0"       (failed events)
//   - "requests:rate > 100"     (throughput in events per second)
//   - "requests:count >= 10000" (completed events)
//   - "rps:accuracy >= 95"      (rate-limited runs only, in percent)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency:p95 < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	allowed, ok := aggregates[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(supportedMetrics(), ", "))
	}
	if !contains(allowed, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(allowed, ", "))
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func supportedMetrics() []string {
	names := make([]string, 0, len(aggregates))
	for name := range aggregates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	return contains([]string{"<", "<=", ">", ">=", "=="}, operator)
}

func extractMetricValue(t Threshold, s metrics.Summary) (float64, error) {
	allowed, ok := aggregates[t.Metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
	if !contains(allowed, t.Aggregate) {
		return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}

	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, s)
	case "errors":
		if t.Aggregate == "count" {
			return float64(s.Failed), nil
		}
		return s.ErrorRatePct, nil
	case "requests":
		if t.Aggregate == "count" {
			return float64(s.Total()), nil
		}
		return s.Throughput, nil
	case "rps":
		if s.RateLimit == nil {
			return 0, fmt.Errorf("%s requires a rate-limited run", t.Raw)
		}
		if t.Aggregate == "accuracy" {
			return s.RateLimit.AccuracyPct, nil
		}
		return s.RateLimit.ActualRPS, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, s metrics.Summary) (float64, error) {
	switch aggregate {
	case "p50":
		return s.P50Ms, nil
	case "p75":
		return s.P75Ms, nil
	case "p90":
		return s.P90Ms, nil
	case "p95":
		return s.P95Ms, nil
	case "p99":
		return s.P99Ms, nil
	case "avg":
		return s.AvgMs, nil
	case "median":
		return s.MedianMs, nil
	case "min":
		return s.MinMs, nil
	case "max":
		return s.MaxMs, nil
	case "stddev":
		return s.StdDevMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
