package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/ingestbench/internal/metrics"
)

func TestWriteResultsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s := sampleSummary()
	s.RateLimit = &metrics.RateLimitStats{TargetRPS: 50, ActualRPS: 49, AccuracyPct: 98}
	now := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)

	if err := WriteResults(path, s, now); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !gjson.ValidBytes(raw) {
		t.Fatalf("results file is not valid JSON: %s", raw)
	}
	doc := gjson.ParseBytes(raw)
	if got := doc.Get("timestamp").String(); got != "2026-03-04T05:06:07Z" {
		t.Errorf("timestamp = %q", got)
	}
	if got := doc.Get("results.total_events_sent").Int(); got != 990 {
		t.Errorf("results.total_events_sent = %d, want 990", got)
	}
	if got := doc.Get("results.rate_limit.rps_accuracy_percentage").Float(); got != 98 {
		t.Errorf("rps_accuracy_percentage = %g, want 98", got)
	}
	if got := doc.Get("results.errors.#").Int(); got != 2 {
		t.Errorf("errors count = %d, want 2", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestWriteResultsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yml")
	if err := WriteResults(path, sampleSummary(), time.Now()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var decoded ResultsFile
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if decoded.Results.Sent != 990 || decoded.Results.P95Ms != 80 {
		t.Errorf("decoded results = %+v", decoded.Results)
	}
	if len(decoded.Results.ErrorBreakdown) != 2 {
		t.Errorf("ErrorBreakdown = %+v", decoded.Results.ErrorBreakdown)
	}
}

func TestWriteResultsReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := WriteResults(path, sampleSummary(), time.Now()); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !gjson.ValidBytes(raw) {
		t.Fatalf("file was not replaced: %s", raw)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if e.Name() != "results.json" && e.Name() != "results.json.lock" {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
}

func TestWriteResultsMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "results.json")
	if err := WriteResults(path, sampleSummary(), time.Now()); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}

func TestIsYAMLPath(t *testing.T) {
	tests := map[string]bool{
		"out.yaml":    true,
		"OUT.YML":     true,
		"out.json":    false,
		"results":     false,
		"dir.yaml/fo": false,
	}
	for path, want := range tests {
		if got := IsYAMLPath(path); got != want {
			t.Errorf("IsYAMLPath(%q) = %v, want %v", path, got, want)
		}
	}
}
