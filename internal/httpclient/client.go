package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a whole request including reading the body.
	DefaultTimeout = 30 * time.Second
	// DefaultConnectTimeout bounds establishing the TCP connection.
	DefaultConnectTimeout = 10 * time.Second
)

// RequestBuilder produces POST requests carrying a JSON event body.
type RequestBuilder struct {
	target  string
	headers http.Header
}

// NewRequestBuilder validates the target and extra headers once so that
// Build stays allocation-light on the hot path.
func NewRequestBuilder(target string, headers map[string]string) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		h.Set(canonicalKey, value)
	}

	return &RequestBuilder{target: target, headers: h}, nil
}

// Target returns the URL requests are sent to.
func (b *RequestBuilder) Target() string {
	return b.target
}

// Build creates a POST request with the given body.
func (b *RequestBuilder) Build(ctx context.Context, body []byte) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return req, nil
}

// NewClient returns a client tuned for load generation. maxConns sizes the
// per-host connection pool; values below 1 leave the pool unbounded.
func NewClient(timeout, connectTimeout time.Duration, maxConns int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	idle := 32
	if maxConns > 0 {
		idle = maxConns
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          max(256, idle),
		MaxIdleConnsPerHost:   idle,
		MaxConnsPerHost:       max(maxConns, 0),
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
