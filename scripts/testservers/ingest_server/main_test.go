package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torosent/ingestbench/internal/event"
)

func validBody(t *testing.T) string {
	t.Helper()
	gen, err := event.NewGenerator("", true)
	require.NoError(t, err)
	raw, err := json.Marshal(gen.Generate())
	require.NoError(t, err)
	return string(raw)
}

func serve(h http.Handler, method, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, "/event", strings.NewReader(body)))
	return rec
}

func TestIngestHandlerAcceptsGeneratedEvents(t *testing.T) {
	h := &ingestHandler{logger: zap.NewNop()}

	rec := serve(h, http.MethodPost, validBody(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())
	assert.EqualValues(t, 1, h.accepted.Load())
}

func TestIngestHandlerRejectsBadRequests(t *testing.T) {
	h := &ingestHandler{logger: zap.NewNop()}

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "").Code)

	rec := serve(h, http.MethodPost, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")

	rec = serve(h, http.MethodPost, `{"appId":"a","anonymousId":"b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing sessionId")
	assert.EqualValues(t, 2, h.rejected.Load())
}

func TestIngestHandlerInjectsFailuresAndLatency(t *testing.T) {
	h := &ingestHandler{
		cfg:    serverConfig{Latency: 20 * time.Millisecond, FailureRate: 1, FailStatus: http.StatusServiceUnavailable},
		logger: zap.NewNop(),
	}

	start := time.Now()
	rec := serve(h, http.MethodPost, validBody(t))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.EqualValues(t, 1, h.failed.Load())
}
