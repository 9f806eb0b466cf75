package runner_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/torosent/ingestbench/internal/metrics"
	"github.com/torosent/ingestbench/internal/runner"
)

func TestPacerScheduledRate(t *testing.T) {
	tests := []struct {
		name   string
		target int
		ramp   int
		ticks  int
		want   map[int]int
	}{
		{
			name: "ramp to ten", target: 10, ramp: 10, ticks: 20,
			want: map[int]int{0: 1, 1: 1, 2: 2, 5: 5, 9: 9, 10: 10, 19: 10},
		},
		{
			name: "ramp floor is one", target: 3, ramp: 60, ticks: 120,
			want: map[int]int{0: 1, 19: 1, 20: 1, 40: 2, 59: 2, 60: 3},
		},
		{
			name: "no ramp", target: 7, ramp: 0, ticks: 5,
			want: map[int]int{0: 7, 4: 7},
		},
		{
			name: "ramp longer than run is clamped", target: 10, ramp: 60, ticks: 20,
			want: map[int]int{0: 1, 10: 5, 19: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := runner.NewPacer(runner.PacerConfig{TargetRPS: tt.target, RampTicks: tt.ramp, Ticks: tt.ticks}, nil, nil, nil, nil, nil)
			for tick, want := range tt.want {
				assert.Equal(t, want, p.ScheduledRate(tick), "tick %d", tick)
			}
		})
	}
}

func TestPacerSpacesRequestsWithinTick(t *testing.T) {
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec}
	cfg := runner.PacerConfig{TargetRPS: 5, Ticks: 1, Tick: 100 * time.Millisecond}

	start := time.Now()
	_, err := runner.NewPacer(cfg, newProducer(t), sender, rec, nil, nil).Run(context.Background())
	require.NoError(t, err)

	times := sender.issueTimes(0)
	require.Len(t, times, 5)
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	assert.Less(t, times[0].Sub(start), 15*time.Millisecond, "first request goes out at tick start")
	spread := times[4].Sub(times[0])
	assert.GreaterOrEqual(t, spread, 70*time.Millisecond)
	assert.Less(t, spread, 100*time.Millisecond)
}

func TestPacerMeasureEvery(t *testing.T) {
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec, latency: time.Millisecond}
	cfg := runner.PacerConfig{TargetRPS: 4, Ticks: 5, Tick: 20 * time.Millisecond, MeasureEvery: 2}

	samples, err := runner.NewPacer(cfg, newProducer(t), sender, rec, nil, nil).Run(context.Background())
	require.NoError(t, err)

	// boundaries after ticks 1 and 3, plus the final tick
	require.Len(t, samples, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{samples[0].ElapsedSeconds, samples[1].ElapsedSeconds, samples[2].ElapsedSeconds})
	assert.Equal(t, 8, samples[0].ObservedRequests)
	assert.Equal(t, 8, samples[1].ObservedRequests)
	assert.Equal(t, 4, samples[2].ObservedRequests)
	assert.Equal(t, int64(20), samples[2].CumulativeSent)
}

func TestPacerRecordsFailuresPerInterval(t *testing.T) {
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec, fail: true}
	cfg := runner.PacerConfig{TargetRPS: 3, Ticks: 2, Tick: 20 * time.Millisecond}

	samples, err := runner.NewPacer(cfg, newProducer(t), sender, rec, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, samples, 2)
	for _, s := range samples {
		assert.Equal(t, 3, s.ObservedRequests)
		assert.Equal(t, 3, s.Errors)
	}
	assert.Equal(t, int64(6), samples[1].CumulativeFailed)
	assert.Zero(t, samples[1].CumulativeSent)
}

func TestPacerNotifiesListenerAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec}
	ticks := &tickLog{}
	cfg := runner.PacerConfig{TargetRPS: 4, RampTicks: 4, Ticks: 12, Tick: 10 * time.Millisecond}

	_, err := runner.NewPacer(cfg, newProducer(t), sender, rec, ticks, zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	for tick := 0; tick < 12; tick++ {
		assert.Equal(t, max(1, min(tick, 4)), ticks.at(tick), "tick %d", tick)
	}
	// progress at ticks 0 and 10
	assert.Equal(t, 2, logs.FilterMessage("rate progress").Len())
}

func TestPacerAbortStopsIssuing(t *testing.T) {
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec, latency: 10 * time.Millisecond}
	cfg := runner.PacerConfig{TargetRPS: 10, Ticks: 100, Tick: 50 * time.Millisecond, GracePeriod: 100 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(120*time.Millisecond, cancel)

	samples, err := runner.NewPacer(cfg, newProducer(t), sender, rec, nil, nil).Run(ctx)
	require.ErrorIs(t, err, runner.ErrAborted)
	assert.Nil(t, samples)
	assert.Less(t, sender.calls.Load(), int64(1000))
}

func TestPacerDeadlineBetweenTokensAborts(t *testing.T) {
	rec := metrics.NewRecorder()
	sender := &fakeSender{recorder: rec, latency: time.Millisecond}
	cfg := runner.PacerConfig{TargetRPS: 2, Ticks: 10, Tick: 400 * time.Millisecond, GracePeriod: 100 * time.Millisecond}

	// first token is immediate, the next one is 200ms out
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	samples, err := runner.NewPacer(cfg, newProducer(t), sender, rec, nil, nil).Run(ctx)

	require.ErrorIs(t, err, runner.ErrAborted)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, samples)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int64(1), sender.calls.Load())
}
