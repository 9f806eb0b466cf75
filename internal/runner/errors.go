package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrAborted is returned when a run is interrupted before it completes.
var ErrAborted = errors.New("run aborted")

// HTTPError represents a non-200 response from the ingestion endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// abortAfterGrace waits up to grace for done to close and returns ErrAborted
// wrapping the context cause.
func abortAfterGrace(ctx context.Context, logger *zap.Logger, done <-chan struct{}, grace time.Duration) error {
	logger.Warn("abort requested, waiting for in-flight requests", zap.Duration("grace", grace))
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("grace period elapsed with requests still in flight")
	}
	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}
