package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/torosent/ingestbench/internal/metrics"
)

// ResultsFile is the envelope written by WriteResults.
type ResultsFile struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Results   metrics.Summary `json:"results" yaml:"results"`
}

// IsYAMLPath reports whether path selects the YAML encoding.
func IsYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// WriteResults saves the summary to path. Writers to the same path are
// serialized through a sibling ".lock" file and the content is replaced
// atomically.
func WriteResults(path string, s metrics.Summary, now time.Time) error {
	envelope := ResultsFile{Timestamp: now.UTC().Truncate(time.Second), Results: s}

	var (
		data []byte
		err  error
	)
	if IsYAMLPath(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(envelope); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	} else {
		data, err = json.MarshalIndent(envelope, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write results file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write results file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write results file: %w", err)
	}
	return nil
}
