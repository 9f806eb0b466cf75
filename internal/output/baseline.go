package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/ingestbench/internal/metrics"
)

// RegressionTolerancePct is the relative change beyond which a metric counts
// as regressed.
const RegressionTolerancePct = 10.0

// Delta compares one metric between a baseline run and the current run.
type Delta struct {
	Metric    string
	Unit      string
	Baseline  float64
	Current   float64
	ChangePct float64
	Regressed bool
}

var baselineMetrics = []struct {
	name           string
	path           string
	unit           string
	higherIsBetter bool
	current        func(metrics.Summary) float64
}{
	{"p95 latency", "results.p95_response_time_ms", "ms", false, func(s metrics.Summary) float64 { return s.P95Ms }},
	{"average latency", "results.average_response_time_ms", "ms", false, func(s metrics.Summary) float64 { return s.AvgMs }},
	{"throughput", "results.throughput_events_per_second", "events/s", true, func(s metrics.Summary) float64 { return s.Throughput }},
	{"error rate", "results.error_rate_percentage", "%", false, func(s metrics.Summary) float64 { return s.ErrorRatePct }},
}

// CompareBaseline loads a results file written by WriteResults and compares
// it with the current summary.
func CompareBaseline(path string, current metrics.Summary) ([]Delta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	if IsYAMLPath(path) {
		if raw, err = yamlToJSON(raw); err != nil {
			return nil, fmt.Errorf("parse baseline %s: %w", path, err)
		}
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("parse baseline %s: invalid JSON", path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.Get("results").Exists() {
		return nil, fmt.Errorf("parse baseline %s: missing \"results\"", path)
	}

	deltas := make([]Delta, 0, len(baselineMetrics))
	for _, m := range baselineMetrics {
		field := doc.Get(m.path)
		if !field.Exists() {
			continue
		}
		base, cur := field.Float(), m.current(current)
		d := Delta{Metric: m.name, Unit: m.unit, Baseline: base, Current: cur}
		if base != 0 {
			d.ChangePct = (cur - base) / math.Abs(base) * 100
		}
		worse := d.ChangePct
		if m.higherIsBetter {
			worse = -worse
		}
		d.Regressed = worse > RegressionTolerancePct
		if base == 0 && !m.higherIsBetter && cur > 0 && m.unit == "%" {
			// error rate appearing from zero
			d.Regressed = cur >= 1
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// PrintBaseline writes the comparison table.
func PrintBaseline(w io.Writer, path string, deltas []Delta, scheme *ColorScheme) {
	if scheme == nil {
		scheme = NoColorScheme()
	}
	section(w, scheme, "BASELINE COMPARISON ("+path+")")
	for _, d := range deltas {
		c, icon := scheme.forLevel(LevelGood)
		if d.Regressed {
			c, icon = scheme.forLevel(LevelBad)
		}
		fmt.Fprintf(w, "  %s %-16s %10.2f -> %10.2f %-8s (%+.1f%%)\n",
			c.Sprint(icon), d.Metric, d.Baseline, d.Current, d.Unit, d.ChangePct)
	}
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
