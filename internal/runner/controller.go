package runner

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/metrics"
)

// State is a phase of the controller lifecycle.
type State string

const (
	StateInit   State = "INIT"
	StateWarmup State = "WARMUP"
	StateMain   State = "MAIN"
	StateDone   State = "DONE"
)

// Controller runs a load test: warm-up, counter reset, main phase and summary.
type Controller struct {
	opts     Options
	producer event.Producer
	sender   Sender
	recorder *metrics.Recorder
	batches  *BatchExecutor
	listener TickListener
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger used for phase transitions and progress.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTickListener forwards pacer ticks to l in rate-limited mode.
func WithTickListener(l TickListener) ControllerOption {
	return func(c *Controller) {
		c.listener = l
	}
}

// NewController creates a controller. sender must record into recorder.
func NewController(opts Options, producer event.Producer, sender Sender, recorder *metrics.Recorder, ctrlOpts ...ControllerOption) *Controller {
	c := &Controller{
		opts:     opts,
		producer: producer,
		sender:   sender,
		recorder: recorder,
		batches:  NewBatchExecutor(producer, sender),
		logger:   zap.NewNop(),
		state:    StateInit,
	}
	for _, opt := range ctrlOpts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	c.logger.Info("phase transition", zap.String("from", string(prev)), zap.String("to", string(next)))
}

// Run executes the test. A configuration error is returned before any request
// is sent; an abort returns ErrAborted. Neither produces a Summary.
func (c *Controller) Run(ctx context.Context) (metrics.Summary, error) {
	if err := c.opts.Validate(); err != nil {
		return metrics.Summary{}, err
	}
	c.opts.normalize()
	mode := c.opts.Mode()

	if !c.opts.SkipWarmup {
		c.transition(StateWarmup)
		if err := c.warmup(ctx); err != nil {
			return metrics.Summary{}, err
		}
	}
	c.recorder.Reset()

	c.transition(StateMain)
	c.logger.Info("starting main phase", zap.String("mode", string(mode)))
	started := time.Now()

	var (
		intervals []metrics.IntervalSample
		err       error
	)
	switch mode {
	case ModeRate:
		intervals, err = c.runRate(ctx)
	case ModeDuration:
		err = c.runDuration(ctx, started)
	default:
		err = c.runCount(ctx)
	}
	if err != nil {
		return metrics.Summary{}, err
	}
	elapsed := time.Since(started)

	summary := metrics.Summarize(c.recorder.Snapshot(), metrics.SummaryOptions{
		Elapsed:     elapsed,
		RateLimited: mode == ModeRate,
		TargetRPS:   c.opts.TargetRPS,
		Intervals:   intervals,
		RunID:       ulid.Make().String(),
		Mode:        string(mode),
		StartedAt:   started.UTC(),
	})
	c.transition(StateDone)
	return summary, nil
}

func (c *Controller) warmup(ctx context.Context) error {
	n := c.opts.warmupEvents()
	c.logger.Info("warming up", zap.Int("events", n))
	_, err := c.runWave(ctx, []int{n})
	return err
}

func (c *Controller) runCount(ctx context.Context) error {
	total := c.opts.TotalEvents
	perWave := c.opts.batchesPerWave()
	remaining := total

	for remaining > 0 {
		sizes := make([]int, 0, perWave)
		for len(sizes) < perWave && remaining > 0 {
			n := min(c.opts.BatchSize, remaining)
			sizes = append(sizes, n)
			remaining -= n
		}
		failed, err := c.runWave(ctx, sizes)
		if err != nil {
			return err
		}

		completed := total - remaining
		c.logger.Info("progress",
			zap.Int("completed", completed),
			zap.Int("total", total),
			zap.Float64("percent", float64(completed)/float64(total)*100),
			zap.Int("wave_failed", failed),
		)
	}
	return nil
}

func (c *Controller) runDuration(ctx context.Context, started time.Time) error {
	perWave := c.opts.batchesPerWave()
	sizes := make([]int, perWave)
	for i := range sizes {
		sizes[i] = c.opts.BatchSize
	}

	for time.Since(started) < c.opts.Duration {
		failed, err := c.runWave(ctx, sizes)
		if err != nil {
			return err
		}
		elapsed := time.Since(started)
		c.logger.Info("progress",
			zap.Duration("elapsed", elapsed.Round(100*time.Millisecond)),
			zap.Duration("duration", c.opts.Duration),
			zap.Int("wave_failed", failed),
		)
	}
	return nil
}

func (c *Controller) runRate(ctx context.Context) ([]metrics.IntervalSample, error) {
	cfg := c.opts.pacerConfig()
	c.logger.Info("rate-limited schedule",
		zap.Int("target_rps", cfg.TargetRPS),
		zap.Int("ticks", cfg.Ticks),
		zap.Int("ramp_ticks", cfg.RampTicks),
		zap.Duration("tick", cfg.Tick),
	)
	pacer := NewPacer(cfg, c.producer, c.sender, c.recorder, c.listener, c.logger)
	return pacer.Run(ctx)
}

// runWave admits one wave of batches, joins it and returns how many of its
// dispatches failed. Cancellation stops admission; in-flight requests get the
// grace period to finish.
func (c *Controller) runWave(ctx context.Context, sizes []int) (int, error) {
	if ctx.Err() != nil {
		return 0, abortAfterGrace(ctx, c.logger, closedChan(), c.opts.GracePeriod)
	}
	var wave [][]bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		wave = c.batches.RunWave(ctx, sizes)
	}()

	select {
	case <-done:
		return countFailed(wave), nil
	case <-ctx.Done():
		return 0, abortAfterGrace(ctx, c.logger, done, c.opts.GracePeriod)
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
