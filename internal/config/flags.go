package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ingestbench",
		Short:         "Load generator for HTTP event ingestion endpoints",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("url", DefaultURL, "Ingestion endpoint URL")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("auth-token", "", "Value sent in the Authorization header")

	// Load control flags
	flags.IntP("events", "n", DefaultEvents, "Total number of events to send")
	flags.IntP("concurrent", "c", DefaultConcurrent, "Maximum number of concurrent requests")
	flags.IntP("batch-size", "b", DefaultBatchSize, "Events dispatched together per batch")
	flags.DurationP("duration", "d", 0, "Run for this long instead of a fixed event count (e.g. 30s, 5m)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Duration("connect-timeout", DefaultConnect, "TCP connect timeout")
	flags.Duration("graceful-shutdown", DefaultGracePeriod, "Max time to wait for in-flight requests after an abort")
	flags.Bool("skip-warmup", false, "Skip the warm-up batch before the measured run")

	// Rate limiting flags
	flags.IntP("target-rps", "r", 0, "Target requests per second (enables rate limiting mode)")
	flags.Bool("ramp-up", false, "Gradually ramp up to the target RPS")
	flags.Duration("ramp-duration", DefaultRampDuration, "Time taken to ramp up to the target RPS")
	flags.Duration("rate-duration", DefaultRateDuration, "Total length of a rate-limited run")

	// Event flags
	flags.String("app-id", "", "Application ID attributed to events when --single-app is set")
	flags.Bool("single-app", false, "Use only --app-id instead of random known applications")
	flags.Bool("list-apps", false, "List the known application IDs and exit")

	// Output flags
	flags.StringP("output", "o", "", "Write results to this file (JSON, or YAML for .yaml/.yml)")
	flags.Bool("json-output", false, "Print the summary as JSON instead of the text report")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-format", string(LogFormatConsole), "Log encoding: 'console' or 'json'")
	flags.Bool("no-color", false, "Disable colored report output")
	flags.Bool("progress", false, "Print a live progress line to stderr")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	flags.String("baseline", "", "Compare against a previous results file")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'latency:p95 < 500')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests traced (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", true, "Send W3C traceparent headers to the target")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			var v string
			if v, err = fs.GetString(name); err == nil {
				*dst = strings.TrimSpace(v)
			}
		}
	}
	integer := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetDuration(name)
		}
	}

	str("url", &cfg.URL)
	str("auth-token", &cfg.AuthToken)
	integer("events", &cfg.Events)
	integer("concurrent", &cfg.Concurrent)
	integer("batch-size", &cfg.BatchSize)
	duration("duration", &cfg.Duration)
	duration("timeout", &cfg.Timeout)
	duration("connect-timeout", &cfg.ConnectTimeout)
	duration("graceful-shutdown", &cfg.GracePeriod)
	boolean("skip-warmup", &cfg.SkipWarmup)
	integer("target-rps", &cfg.TargetRPS)
	boolean("ramp-up", &cfg.RampUp)
	duration("ramp-duration", &cfg.RampDuration)
	duration("rate-duration", &cfg.RateDuration)
	str("app-id", &cfg.AppID)
	boolean("single-app", &cfg.SingleApp)
	boolean("list-apps", &cfg.ListApps)
	str("output", &cfg.Output)
	boolean("json-output", &cfg.JSONOutput)
	boolean("verbose", &cfg.Verbose)
	boolean("no-color", &cfg.NoColor)
	boolean("progress", &cfg.Progress)
	str("metrics-addr", &cfg.MetricsAddr)
	str("baseline", &cfg.Baseline)
	str("tracing-endpoint", &cfg.Tracing.Endpoint)
	str("tracing-protocol", &cfg.Tracing.Protocol)
	str("tracing-service-name", &cfg.Tracing.ServiceName)
	boolean("tracing-insecure", &cfg.Tracing.Insecure)
	if err != nil {
		return err
	}

	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}
	if fs.Changed("header") {
		values, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, raw := range values {
			key, value, ok := strings.Cut(raw, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return fmt.Errorf("invalid header %q: expected key=value", raw)
			}
			cfg.Headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
	if fs.Changed("threshold") {
		values, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, values...)
	}
	return nil
}
