package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/metrics"
)

// BatchExecutor fires groups of concurrent dispatches and waits for each group.
type BatchExecutor struct {
	producer event.Producer
	sender   Sender
}

// NewBatchExecutor creates a batch executor.
func NewBatchExecutor(producer event.Producer, sender Sender) *BatchExecutor {
	return &BatchExecutor{producer: producer, sender: sender}
}

// RunBatch generates n events, dispatches them all at once and returns the
// success flags, in generation order, after every dispatch has completed.
func (b *BatchExecutor) RunBatch(ctx context.Context, n int) []bool {
	results := make([]bool, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		ev := b.producer.Generate()
		g.Go(func() error {
			results[i] = b.sender.Dispatch(ctx, ev, metrics.NoTick).Success
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunWave runs one batch per entry of sizes concurrently and returns each
// batch's success flags, in the order of sizes, once all of them complete.
func (b *BatchExecutor) RunWave(ctx context.Context, sizes []int) [][]bool {
	results := make([][]bool, len(sizes))
	var g errgroup.Group
	for i, n := range sizes {
		g.Go(func() error {
			results[i] = b.RunBatch(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// countFailed returns how many dispatches in a wave did not succeed.
func countFailed(wave [][]bool) int {
	failed := 0
	for _, batch := range wave {
		for _, ok := range batch {
			if !ok {
				failed++
			}
		}
	}
	return failed
}
