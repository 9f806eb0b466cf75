package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used when neither a file nor a flag sets a value.
func Defaults() Config {
	return Config{
		URL:            DefaultURL,
		Headers:        map[string]string{},
		Events:         DefaultEvents,
		Concurrent:     DefaultConcurrent,
		BatchSize:      DefaultBatchSize,
		RampDuration:   DefaultRampDuration,
		RateDuration:   DefaultRateDuration,
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnect,
		GracePeriod:    DefaultGracePeriod,
		LogFormat:      LogFormatConsole,
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(extra, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
// Keys may be written in snake_case, kebab-case or camelCase.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"url", "target"}, &cfg.URL},
		{[]string{"authtoken", "auth_token", "auth-token"}, &cfg.AuthToken},
		{[]string{"appid", "app_id", "app-id"}, &cfg.AppID},
		{[]string{"output"}, &cfg.Output},
		{[]string{"metricsaddr", "metrics_addr", "metrics-addr"}, &cfg.MetricsAddr},
		{[]string{"baseline"}, &cfg.Baseline},
	}
	for _, f := range stringFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	intFields := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"events"}, &cfg.Events},
		{[]string{"concurrent", "concurrency"}, &cfg.Concurrent},
		{[]string{"batchsize", "batch_size", "batch-size"}, &cfg.BatchSize},
		{[]string{"targetrps", "target_rps", "target-rps"}, &cfg.TargetRPS},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	boolFields := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"rampup", "ramp_up", "ramp-up"}, &cfg.RampUp},
		{[]string{"skipwarmup", "skip_warmup", "skip-warmup"}, &cfg.SkipWarmup},
		{[]string{"singleapp", "single_app", "single-app"}, &cfg.SingleApp},
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"verbose"}, &cfg.Verbose},
		{[]string{"nocolor", "no_color", "no-color"}, &cfg.NoColor},
		{[]string{"progress"}, &cfg.Progress},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durationFields := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"duration"}, &cfg.Duration},
		{[]string{"rampduration", "ramp_duration", "ramp-duration"}, &cfg.RampDuration},
		{[]string{"rateduration", "rate_duration", "rate-duration"}, &cfg.RateDuration},
		{[]string{"timeout"}, &cfg.Timeout},
		{[]string{"connecttimeout", "connect_timeout", "connect-timeout"}, &cfg.ConnectTimeout},
		{[]string{"gracefulshutdown", "graceful_shutdown", "graceful-shutdown"}, &cfg.GracePeriod},
	}
	for _, f := range durationFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	out := base

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return base, fmt.Errorf("endpoint: %w", err)
		}
		out.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return base, fmt.Errorf("protocol: %w", err)
		}
		out.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return base, fmt.Errorf("service_name: %w", err)
		}
		out.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return base, fmt.Errorf("sample_rate: %w", err)
		}
		out.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return base, fmt.Errorf("insecure: %w", err)
		}
		out.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return base, fmt.Errorf("propagate: %w", err)
		}
		out.Propagate = &val
	}
	return out, nil
}
