package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/ingestbench/internal/config"
	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/exporter"
	"github.com/torosent/ingestbench/internal/httpclient"
	"github.com/torosent/ingestbench/internal/logging"
	"github.com/torosent/ingestbench/internal/metrics"
	"github.com/torosent/ingestbench/internal/output"
	"github.com/torosent/ingestbench/internal/runner"
	"github.com/torosent/ingestbench/internal/threshold"
	"github.com/torosent/ingestbench/internal/tracing"
)

const (
	exitOK      = 0
	exitFailure = 1

	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if cfg.ListApps {
		printApps(stdout)
		return exitOK
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	logger := logging.New(stderr, cfg.Verbose, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	summary, err := execute(ctx, cfg, logger, stderr)
	if err != nil {
		if errors.Is(err, runner.ErrAborted) {
			logger.Error("benchmark interrupted", zap.Error(err))
		} else {
			logger.Error("benchmark failed", zap.Error(err))
		}
		return exitFailure
	}

	// Machine-readable stdout stays a single JSON document; everything else
	// moves to stderr.
	aux := stdout
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, summary); err != nil {
			logger.Error("write json report", zap.Error(err))
			return exitFailure
		}
		aux = stderr
	} else {
		output.PrintReport(stdout, summary, schemeFor(stdout, cfg.NoColor))
	}

	if cfg.Output != "" {
		if err := output.WriteResults(cfg.Output, summary, time.Now()); err != nil {
			logger.Error("save results", zap.String("path", cfg.Output), zap.Error(err))
			return exitFailure
		}
		logger.Info("results saved", zap.String("path", cfg.Output))
	}

	if cfg.Baseline != "" {
		deltas, err := output.CompareBaseline(cfg.Baseline, summary)
		if err != nil {
			logger.Warn("baseline comparison skipped", zap.Error(err))
		} else {
			output.PrintBaseline(aux, cfg.Baseline, deltas, schemeFor(aux, cfg.NoColor))
			for _, d := range deltas {
				if d.Regressed {
					logger.Warn("regression against baseline",
						zap.String("metric", d.Metric),
						zap.Float64("baseline", d.Baseline),
						zap.Float64("current", d.Current),
						zap.Float64("change_pct", d.ChangePct),
					)
				}
			}
		}
	}

	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(summary)
		printThresholds(aux, results)
		if !threshold.AllPassed(results) {
			logger.Error("thresholds failed")
			return exitFailure
		}
	}
	return exitOK
}

// execute wires the run from cfg and blocks until it completes or aborts.
func execute(ctx context.Context, cfg *config.Config, logger *zap.Logger, stderr io.Writer) (metrics.Summary, error) {
	opts := runnerOptions(cfg)
	logStart(logger, cfg, opts)

	tp, err := tracing.Init(ctx, cfg.Tracing, attribute.String("ingest.url", cfg.URL))
	if err != nil {
		return metrics.Summary{}, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	producer, err := event.NewGenerator(cfg.AppID, !cfg.SingleApp)
	if err != nil {
		return metrics.Summary{}, err
	}
	builder, err := httpclient.NewRequestBuilder(cfg.URL, cfg.RequestHeaders())
	if err != nil {
		return metrics.Summary{}, err
	}
	client := httpclient.NewClient(cfg.Timeout, cfg.ConnectTimeout, opts.ConnectionLimit())
	defer client.CloseIdleConnections()

	var (
		observers []metrics.Observer
		ctrlOpts  = []runner.ControllerOption{runner.WithLogger(logger)}
	)
	if cfg.MetricsAddr != "" {
		exp := exporter.New(logger)
		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()
		_, errCh, err := exp.Serve(serveCtx, cfg.MetricsAddr)
		if err != nil {
			return metrics.Summary{}, err
		}
		go func() {
			for err := range errCh {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		observers = append(observers, exp)
		ctrlOpts = append(ctrlOpts, runner.WithTickListener(exp))
	}

	recorder := metrics.NewRecorder(observers...)
	dispatcher := runner.NewDispatcher(client, builder, recorder,
		runner.WithTracer(tp.Tracer(), tp.ShouldPropagate()),
		runner.WithDispatchLogger(logger),
	)

	if cfg.Progress && !cfg.JSONOutput {
		progress := output.NewProgressReporter(recorder, progressInterval, stderr)
		progress.Start()
		defer progress.Stop()
	}

	controller := runner.NewController(opts, producer, dispatcher, recorder, ctrlOpts...)
	return controller.Run(ctx)
}

func runnerOptions(cfg *config.Config) runner.Options {
	opts := runner.Options{
		TotalEvents: cfg.Events,
		Concurrency: cfg.Concurrent,
		BatchSize:   cfg.BatchSize,
		Duration:    cfg.Duration,
		GracePeriod: cfg.GracePeriod,
		SkipWarmup:  cfg.SkipWarmup,
	}
	if cfg.RateLimited() {
		opts.RateLimited = true
		opts.TargetRPS = cfg.TargetRPS
		opts.RampUp = cfg.RampUp
		opts.RampDuration = cfg.RampDuration
		opts.RateDuration = cfg.EffectiveRateDuration()
		opts.Duration = 0
	}
	return opts
}

func logStart(logger *zap.Logger, cfg *config.Config, opts runner.Options) {
	fields := []zap.Field{
		zap.String("url", cfg.URL),
		zap.String("mode", string(opts.Mode())),
	}
	if cfg.SingleApp {
		fields = append(fields, zap.String("app_id", cfg.AppID))
	} else {
		fields = append(fields, zap.Int("app_pool", len(event.KnownApps)))
	}
	switch opts.Mode() {
	case runner.ModeRate:
		fields = append(fields,
			zap.Int("target_rps", opts.TargetRPS),
			zap.Duration("duration", opts.RateDuration),
		)
		if opts.RampUp {
			fields = append(fields, zap.Duration("ramp", opts.RampDuration))
		}
	case runner.ModeDuration:
		fields = append(fields,
			zap.Duration("duration", opts.Duration),
			zap.Int("concurrent", opts.Concurrency),
			zap.Int("batch_size", opts.BatchSize),
		)
	default:
		fields = append(fields,
			zap.Int("events", opts.TotalEvents),
			zap.Int("concurrent", opts.Concurrency),
			zap.Int("batch_size", opts.BatchSize),
		)
	}
	logger.Info("starting benchmark", fields...)
}

func schemeFor(w io.Writer, noColor bool) *output.ColorScheme {
	if f, ok := w.(*os.File); ok {
		return output.SchemeFor(f, noColor)
	}
	return output.NoColorScheme()
}

func printApps(w io.Writer) {
	fmt.Fprintln(w, "\nAvailable application IDs:")
	fmt.Fprintln(w, "============================================================")
	for i, app := range event.KnownApps {
		fmt.Fprintf(w, "  %2d. %s - %s\n", i+1, app.ID, app.Name)
	}
	fmt.Fprintln(w, "\nUse --app-id <ID> to test with a specific app")
	fmt.Fprintln(w, "Use --single-app to use only that app instead of random selection")
}

func printThresholds(w io.Writer, results []threshold.Result) {
	passed := 0
	for _, r := range results {
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nTHRESHOLDS (%d/%d passed):\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}
