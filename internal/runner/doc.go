// Package runner is the load generation engine for ingestbench.
//
// A [Controller] walks a run through INIT, WARMUP, MAIN and DONE. The main
// phase runs in one of three modes:
//   - [ModeCount]: send a fixed number of events in waves of batches
//   - [ModeDuration]: keep sending waves until the duration elapses
//   - [ModeRate]: drive a target rate per tick through the [Pacer]
//
// # Basic Usage
//
//	recorder := metrics.NewRecorder()
//	dispatcher := runner.NewDispatcher(client, builder, recorder)
//	ctrl := runner.NewController(runner.Options{
//		TotalEvents: 10000,
//		Concurrency: 100,
//		BatchSize:   10,
//	}, generator, dispatcher, recorder)
//	summary, err := ctrl.Run(ctx)
//
// # Concurrency
//
// In count and duration modes the controller admits max(1, Concurrency/BatchSize)
// batches per wave and joins the wave before admitting the next, so at most
// max(Concurrency, BatchSize) requests are in flight. In rate mode each tick issues
// [Pacer.ScheduledRate] requests spaced evenly across the tick on a bounded
// goroutine pool; ticks overlap except at measurement boundaries, where the
// requests issued since the previous boundary are joined and an interval
// sample is recorded from the outcomes tagged with those ticks.
//
// # Errors
//
// Per-request failures never stop a run; they become failed outcomes whose
// message is either "HTTP <status>: <body>" ([HTTPError]) or
// "Exception: <cause>". Invalid options wrap [ErrInvalidConfig]. Cancelling
// the context stops issuing requests, waits up to the grace period for
// in-flight ones and returns an error wrapping [ErrAborted].
package runner
