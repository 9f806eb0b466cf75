package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultURL          = "http://localhost:8001/event"
	DefaultEvents       = 10000
	DefaultConcurrent   = 100
	DefaultBatchSize    = 10
	DefaultRampDuration = 60 * time.Second
	DefaultRateDuration = 300 * time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultConnect      = 10 * time.Second
	DefaultGracePeriod  = 5 * time.Second
)

type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

type Config struct {
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
	AuthToken      string            `mapstructure:"auth_token"`
	Events         int               `mapstructure:"events"`
	Concurrent     int               `mapstructure:"concurrent"`
	BatchSize      int               `mapstructure:"batch_size"`
	Duration       time.Duration     `mapstructure:"duration"`
	TargetRPS      int               `mapstructure:"target_rps"`
	RampUp         bool              `mapstructure:"ramp_up"`
	RampDuration   time.Duration     `mapstructure:"ramp_duration"`
	RateDuration   time.Duration     `mapstructure:"rate_duration"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	GracePeriod    time.Duration     `mapstructure:"graceful_shutdown"`
	SkipWarmup     bool              `mapstructure:"skip_warmup"`
	AppID          string            `mapstructure:"app_id"`
	SingleApp      bool              `mapstructure:"single_app"`
	ListApps       bool              `mapstructure:"-"`
	Output         string            `mapstructure:"output"`
	JSONOutput     bool              `mapstructure:"json_output"`
	Verbose        bool              `mapstructure:"verbose"`
	LogFormat      LogFormat         `mapstructure:"log_format"`
	NoColor        bool              `mapstructure:"no_color"`
	Progress       bool              `mapstructure:"progress"`
	MetricsAddr    string            `mapstructure:"metrics_addr"`
	Thresholds     []string          `mapstructure:"thresholds"`
	Baseline       string            `mapstructure:"baseline"`
	ConfigFile     string            `mapstructure:"-"`
	Tracing        TracingConfig     `mapstructure:"tracing"`
}

// TracingConfig configures OTLP trace export for dispatched requests.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate defaults to true when tracing is enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an OTLP endpoint is configured by flag, file or
// the standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// RateLimited reports whether the run is paced by target RPS.
func (c Config) RateLimited() bool {
	return c.TargetRPS > 0
}

// EffectiveRateDuration is the length of a rate-limited run; an explicit
// duration takes precedence over the rate duration.
func (c Config) EffectiveRateDuration() time.Duration {
	if c.Duration > 0 {
		return c.Duration
	}
	return c.RateDuration
}

// RequestHeaders returns the extra headers sent with every event.
func (c Config) RequestHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	if c.AuthToken != "" {
		headers["Authorization"] = c.AuthToken
	}
	return headers
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if strings.TrimSpace(c.URL) == "" {
		issues = append(issues, "url is required")
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("url %q must be an absolute http(s) URL", c.URL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("url scheme %q is not supported", u.Scheme))
	}

	if c.TargetRPS > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High target rate configured (%d RPS). Ensure you have authorization to test the target system.", c.TargetRPS))
	}
	if c.Concurrent > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d requests). Ensure you have authorization to test the target system.", c.Concurrent))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.TargetRPS < 0 {
		issues = append(issues, "target-rps must be non-negative")
	}
	if c.RateLimited() {
		if c.RampUp && c.RampDuration <= 0 {
			issues = append(issues, "--ramp-duration must be specified when using --ramp-up")
		}
		if c.EffectiveRateDuration() <= 0 {
			issues = append(issues, "rate-duration must be greater than zero")
		}
	} else {
		if c.RampUp {
			issues = append(issues, "--ramp-up requires --target-rps")
		}
		if c.Concurrent < 1 {
			issues = append(issues, "concurrent must be at least 1")
		}
		if c.BatchSize < 1 {
			issues = append(issues, "batch-size must be at least 1")
		}
		if c.Duration <= 0 && c.Events < 1 {
			issues = append(issues, "events must be at least 1 when no duration is set")
		}
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be non-negative")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be greater than zero")
	}
	if c.ConnectTimeout < 0 {
		issues = append(issues, "connect-timeout must be non-negative")
	}
	if c.GracePeriod < 0 {
		issues = append(issues, "graceful-shutdown must be non-negative")
	}
	if c.SingleApp && strings.TrimSpace(c.AppID) == "" {
		issues = append(issues, "--single-app requires --app-id")
	}
	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log-format must be %q or %q", LogFormatConsole, LogFormatJSON))
	}
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample-rate must be between 0.0 and 1.0")
	}
	return issues
}
