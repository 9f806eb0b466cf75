package metrics

import (
	"sort"
	"strings"
)

// ErrorBucket is the number of failures that share an error kind.
type ErrorBucket struct {
	Kind  string `json:"kind" yaml:"kind"`
	Count int    `json:"count" yaml:"count"`
}

var exceptionAliases = []struct {
	needle string
	kind   string
}{
	{"client.timeout", "Timeout"},
	{"deadline exceeded", "Timeout"},
	{"i/o timeout", "Timeout"},
	{"connection refused", "Connection refused"},
	{"connection reset", "Connection reset"},
	{"no such host", "DNS lookup failed"},
	{"tls", "TLS error"},
	{"eof", "Connection closed"},
}

// ErrorKind groups a failure message into a short label.
// "HTTP 503: busy" becomes "HTTP 503"; transport failures are grouped by cause.
func ErrorKind(msg string) string {
	cleaned := strings.TrimSpace(msg)
	if cleaned == "" {
		return "Unknown error"
	}

	if strings.HasPrefix(cleaned, "HTTP ") {
		if idx := strings.Index(cleaned, ":"); idx != -1 {
			return cleaned[:idx]
		}
		return cleaned
	}

	lower := strings.ToLower(cleaned)
	for _, alias := range exceptionAliases {
		if strings.Contains(lower, alias.needle) {
			return alias.kind
		}
	}
	if strings.HasPrefix(cleaned, "Exception:") {
		return "Exception"
	}
	return "Unknown error"
}

// FlattenErrorKinds converts a kind->count map into rows sorted by descending count,
// then by kind for stability.
func FlattenErrorKinds(kinds map[string]int) []ErrorBucket {
	if len(kinds) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0, len(kinds))
	for kind, count := range kinds {
		rows = append(rows, ErrorBucket{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
