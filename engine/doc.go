// Package engine implements the orchestration layer above the runner.
//
// The Engine serves as the coordination hub between the high-level TradeMesh
// façade and the per-run machinery: it keeps a registry of participants,
// draws competition setups from game configurations, launches runs on fresh
// runners and tracks them until their reports are in.
//
// # Core Responsibilities
//
// Participant Management:
//   - Thread-safe participant registry with id-based lookup
//   - Roster assembly per launched competition
//
// Run Orchestration:
//   - Asynchronous (Launch) and synchronous (LaunchSync) execution
//   - Bounded concurrent runs with a configurable limit
//   - Cancellation by run id (StopRun) and context propagation
//   - Report retrieval after completion (Report)
//
// Event Processing:
//   - Per-run forwarding goroutine streaming events to the client
//   - Settlement callback dispatch on the event path
//   - Non-blocking error propagation with buffered channels
//
// Callback System:
//   - BeforeRun/AfterRun hooks around each competition
//   - OnTrade/OnRejection hooks per settlement verdict
//   - Built-in implementations for logging and trade validation
//
// # Usage
//
// Basic setup:
//
//	e := engine.New(func(o *engine.Options) {
//	    o.Logger = logger
//	})
//
//	e.Register(agent.NewParticipant("alice", strategy.NewLogUtilityStrategy()))
//	e.Register(agent.NewParticipant("bob", strategy.NewLogUtilityStrategy()))
//
// Streaming execution:
//
//	runID, events, errs, err := e.Launch(ctx, game.DefaultConfiguration(
//	    []string{"alice", "bob"}, []string{"good1", "good2"}))
//	if err != nil {
//	    return err
//	}
//	for event := range events {
//	    handleEvent(event)
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//	report, _ := e.Report(runID)
//
// Synchronous execution:
//
//	_, report, err := e.LaunchSync(ctx, config)
//
// # Error Handling
//
//   - Immediate errors: returned directly for launch failures (invalid
//     configuration, unregistered participant, concurrency limit, vetoing
//     BeforeRun callback)
//   - Terminal errors: propagated via the run's error channel
//   - Callback vetoes during a run: surfaced as terminal errors after the
//     run is cancelled
//
// The engine handles the bookkeeping of concurrent runs while the runner
// package owns the per-run service stack; see the runner package for the
// trade-window lifecycle itself.
package engine
