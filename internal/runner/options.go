package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error returned before a run starts.
var ErrInvalidConfig = errors.New("invalid configuration")

// Mode selects how the main phase issues requests.
type Mode string

const (
	ModeCount    Mode = "count"
	ModeDuration Mode = "duration"
	ModeRate     Mode = "rate"
)

const (
	defaultTick         = time.Second
	defaultGracePeriod  = 5 * time.Second
	defaultRateDuration = 300 * time.Second
)

// Options configure a load test run.
type Options struct {
	TotalEvents  int           // events to send in count mode
	Concurrency  int           // requests in flight at once in count and duration modes
	BatchSize    int           // events per batch
	Duration     time.Duration // run length in duration mode (0 means count mode)
	RateLimited  bool          // use the rate pacer
	TargetRPS    int           // steady-state rate in rate mode
	RampUp       bool          // ramp the rate from ~0 to TargetRPS
	RampDuration time.Duration // ramp window, clamped to RateDuration
	RateDuration time.Duration // run length in rate mode
	Tick         time.Duration // pacer scheduling unit, one second unless shortened for tests
	MeasureEvery int           // ticks between interval samples
	GracePeriod  time.Duration // how long an abort waits for in-flight dispatches
	SkipWarmup   bool
}

// Mode reports which main-phase strategy the options select.
func (o Options) Mode() Mode {
	switch {
	case o.RateLimited:
		return ModeRate
	case o.Duration > 0:
		return ModeDuration
	default:
		return ModeCount
	}
}

// Validate checks the options before any traffic is generated.
func (o Options) Validate() error {
	var issues []string

	if o.RateLimited {
		if o.TargetRPS <= 0 {
			issues = append(issues, "rate-limited mode requires a target rps > 0")
		}
		if o.RampUp && o.RampDuration <= 0 {
			issues = append(issues, "ramp-up requires a ramp duration > 0")
		}
		if o.RateDuration < 0 {
			issues = append(issues, "rate duration must be >= 0")
		}
	} else {
		if o.Concurrency < 1 {
			issues = append(issues, "concurrency must be >= 1")
		}
		if o.BatchSize < 1 {
			issues = append(issues, "batch size must be >= 1")
		}
		if o.Duration < 0 {
			issues = append(issues, "duration must be >= 0")
		}
		if o.Duration == 0 && o.TotalEvents < 1 {
			issues = append(issues, "events must be >= 1")
		}
	}
	if o.Tick < 0 {
		issues = append(issues, "tick must be >= 0")
	}
	if o.MeasureEvery < 0 {
		issues = append(issues, "measure interval must be >= 0")
	}
	if o.GracePeriod < 0 {
		issues = append(issues, "grace period must be >= 0")
	}

	if len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(issues, "; "))
	}
	return nil
}

func (o *Options) normalize() {
	if o.Tick <= 0 {
		o.Tick = defaultTick
	}
	if o.MeasureEvery <= 0 {
		o.MeasureEvery = 1
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = defaultGracePeriod
	}
	if o.RateDuration <= 0 {
		o.RateDuration = defaultRateDuration
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
}

// ConnectionLimit sizes the shared connection pool: twice the expected number
// of requests in flight.
func (o Options) ConnectionLimit() int {
	if o.RateLimited && o.TargetRPS > 0 {
		return 2 * o.TargetRPS
	}
	return 2 * max(o.Concurrency, 1)
}

// batchesPerWave is how many batches the controller keeps in flight at once.
func (o Options) batchesPerWave() int {
	return max(1, o.Concurrency/max(o.BatchSize, 1))
}

// warmupEvents is the size of the warm-up batch.
func (o Options) warmupEvents() int {
	if o.RateLimited {
		return 5
	}
	return min(10, max(o.BatchSize, 1))
}

// pacerConfig derives the pacer schedule in ticks.
func (o Options) pacerConfig() PacerConfig {
	ticks := int(o.RateDuration / o.Tick)
	ramp := 0
	if o.RampUp {
		ramp = min(int(o.RampDuration/o.Tick), ticks)
	}
	return PacerConfig{
		TargetRPS:    o.TargetRPS,
		Ticks:        ticks,
		RampTicks:    ramp,
		Tick:         o.Tick,
		MeasureEvery: o.MeasureEvery,
		GracePeriod:  o.GracePeriod,
		MaxInFlight:  o.ConnectionLimit(),
	}
}
