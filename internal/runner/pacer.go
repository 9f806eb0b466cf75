package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/metrics"
)

// progressEveryTicks controls how often the pacer logs a progress line.
const progressEveryTicks = 10

// PacerConfig is the rate-limited schedule expressed in ticks.
type PacerConfig struct {
	TargetRPS    int           // R
	Ticks        int           // D
	RampTicks    int           // W, 0 disables the ramp
	Tick         time.Duration // wall-clock length of one tick
	MeasureEvery int           // ticks per interval sample
	GracePeriod  time.Duration
	MaxInFlight  int // dispatch pool capacity
}

// TickListener is told the scheduled request count at the start of each tick.
type TickListener interface {
	TickStarted(tick, scheduled int)
}

// Pacer drives requests at a target rate with an optional linear ramp.
type Pacer struct {
	cfg      PacerConfig
	producer event.Producer
	sender   Sender
	recorder *metrics.Recorder
	listener TickListener
	logger   *zap.Logger
}

// NewPacer creates a pacer. listener and logger may be nil.
func NewPacer(cfg PacerConfig, producer event.Producer, sender Sender, recorder *metrics.Recorder, listener TickListener, logger *zap.Logger) *Pacer {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.MeasureEvery <= 0 {
		cfg.MeasureEvery = 1
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = max(2*cfg.TargetRPS, 1)
	}
	if cfg.RampTicks > cfg.Ticks {
		cfg.RampTicks = cfg.Ticks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pacer{
		cfg:      cfg,
		producer: producer,
		sender:   sender,
		recorder: recorder,
		listener: listener,
		logger:   logger,
	}
}

// ScheduledRate is the number of requests issued during tick t.
func (p *Pacer) ScheduledRate(t int) int {
	return scheduledRate(t, p.cfg.RampTicks, p.cfg.TargetRPS)
}

func scheduledRate(t, rampTicks, target int) int {
	if rampTicks > 0 && t < rampTicks {
		return max(1, t*target/rampTicks)
	}
	return target
}

// Run issues the whole schedule and returns one interval sample per
// measurement boundary. On cancellation it stops issuing at once, waits up to
// the grace period for in-flight requests and returns ErrAborted.
func (p *Pacer) Run(ctx context.Context) ([]metrics.IntervalSample, error) {
	pool, err := ants.NewPool(p.cfg.MaxInFlight)
	if err != nil {
		return nil, fmt.Errorf("create dispatch pool: %w", err)
	}
	defer pool.Release()

	var (
		all         sync.WaitGroup
		window      = &sync.WaitGroup{}
		windowStart int
		samples     []metrics.IntervalSample
	)

	for t := 0; t < p.cfg.Ticks; t++ {
		if ctx.Err() != nil {
			return nil, abortAfterGrace(ctx, p.logger, waitDone(&all), p.cfg.GracePeriod)
		}
		tickStart := time.Now()
		scheduled := p.ScheduledRate(t)
		if p.listener != nil {
			p.listener.TickStarted(t, scheduled)
		}

		if err := p.issueTick(ctx, pool, t, scheduled, &all, window); err != nil {
			if ctx.Err() != nil {
				return nil, abortAfterGrace(ctx, p.logger, waitDone(&all), p.cfg.GracePeriod)
			}
			all.Wait()
			return nil, err
		}

		if (t+1)%p.cfg.MeasureEvery == 0 || t == p.cfg.Ticks-1 {
			select {
			case <-waitDone(window):
			case <-ctx.Done():
				return nil, abortAfterGrace(ctx, p.logger, waitDone(&all), p.cfg.GracePeriod)
			}
			samples = append(samples, p.measure(windowStart, t, scheduled))
			window = &sync.WaitGroup{}
			windowStart = t + 1
		}

		if t%progressEveryTicks == 0 {
			sent, failed := p.recorder.Counts()
			p.logger.Info("rate progress",
				zap.Int("tick", t),
				zap.Int("target_rps", scheduled),
				zap.Int64("sent", sent),
				zap.Int64("failed", failed),
			)
		}

		if remaining := p.cfg.Tick - time.Since(tickStart); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, abortAfterGrace(ctx, p.logger, waitDone(&all), p.cfg.GracePeriod)
			}
		}
	}

	all.Wait()
	return samples, nil
}

// issueTick spaces n dispatches evenly across one tick. The limiter starts
// with a token, so the first request goes out immediately and nothing waits
// after the last one. It waits on a reservation rather than limiter.Wait,
// which fails early when a context deadline is closer than the next token.
func (p *Pacer) issueTick(ctx context.Context, pool *ants.Pool, tick, n int, all, window *sync.WaitGroup) error {
	limiter := rate.NewLimiter(rate.Every(p.cfg.Tick/time.Duration(max(n, 1))), 1)
	for i := 0; i < n; i++ {
		if err := waitReservation(ctx, limiter.Reserve()); err != nil {
			return err
		}
		ev := p.producer.Generate()
		all.Add(1)
		window.Add(1)
		err := pool.Submit(func() {
			defer all.Done()
			defer window.Done()
			p.sender.Dispatch(ctx, ev, tick)
		})
		if err != nil {
			all.Done()
			window.Done()
			return fmt.Errorf("submit dispatch: %w", err)
		}
	}
	return nil
}

func waitReservation(ctx context.Context, r *rate.Reservation) error {
	if !r.OK() {
		return fmt.Errorf("rate limiter cannot grant a token")
	}
	delay := r.Delay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func (p *Pacer) measure(from, to, target int) metrics.IntervalSample {
	stats := p.recorder.TakeTicks(from, to)
	sent, failed := p.recorder.Counts()
	return metrics.IntervalSample{
		Timestamp:        time.Now().UTC(),
		ElapsedSeconds:   to,
		TargetRPS:        target,
		ObservedRequests: stats.Requests,
		Errors:           stats.Errors,
		AvgLatencyMs:     stats.AvgLatencyMs,
		P95LatencyMs:     stats.P95LatencyMs,
		CumulativeSent:   sent,
		CumulativeFailed: failed,
	}
}

func waitDone(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
