package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/logging"
	"github.com/hupe1980/trademesh/runner"
)

// Config defines tuning parameters for the engine's operational behavior.
type Config struct {
	// MaxConcurrentRuns limits how many competitions may execute
	// simultaneously. Set to 0 for unlimited (not recommended).
	MaxConcurrentRuns int

	// EventBufferSize sets the channel buffer size for event forwarding.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// Runner is the per-run tuning forwarded to every launched runner
	// (trade window, message budgets, pending timeout).
	Runner runner.Config
}

// DefaultConfig provides production-ready defaults: a conservative
// concurrency limit, moderate buffering and the runner package defaults.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	EventBufferSize:   100,
	Runner:            runner.DefaultConfig,
}

// Options configures an Engine instance using the functional options
// pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Callbacks holds the lifecycle hooks executed around and during runs.
	// Defaults to an empty manager.
	Callbacks *CallbackManager
}

// Engine orchestrates trading competitions over a registry of participants.
//
// It is the coordination point between the high-level façade and the per-run
// machinery:
//
//   - Participant registry: thread-safe registration and lookup by agent id
//   - Launching: drawing a setup from a game configuration, assembling the
//     roster, and running it on a fresh runner
//   - Run tracking: cancellation by run id, report retrieval after the run
//   - Lifecycle callbacks: before/after run hooks and per-settlement hooks
//
// Concurrency model: registration and lookup are guarded by one mutex, run
// tracking by another, and each launched run gets its own goroutine that
// forwards the run's event stream to the client. All public methods are safe
// for concurrent use, though registration is best completed before the first
// launch.
type Engine struct {
	config    Config
	logger    logging.Logger
	callbacks *CallbackManager

	mu     sync.RWMutex
	agents map[string]runner.Agent

	runsMu     sync.RWMutex
	activeRuns map[string]*activeRun
	reports    map[string]*runner.RunReport
}

// activeRun couples a live runner with the setup it plays out.
type activeRun struct {
	runner *runner.Runner
	setup  *game.Setup
}

// New creates an Engine ready for participant registration.
//
// The engine does not take ownership of registered agents; callers remain
// responsible for constructing them with their strategies. Reports of
// completed runs are kept for the engine's lifetime and retrievable via
// Report.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		config:     opts.Config,
		logger:     opts.Logger,
		callbacks:  opts.Callbacks,
		agents:     make(map[string]runner.Agent),
		activeRuns: make(map[string]*activeRun),
		reports:    make(map[string]*runner.RunReport),
	}
}

// Register adds a participant to the registry under its agent id, making it
// eligible for launched competitions. Registering the same id again replaces
// the previous agent without warning; avoid doing so while a run using it is
// in flight.
func (e *Engine) Register(a runner.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.ID()] = a
}

// GetAgent retrieves a registered participant by id.
func (e *Engine) GetAgent(id string) (runner.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[id]
	return a, ok
}

// Launch draws a setup from the configuration and starts an asynchronous
// competition run with the registered participants it names.
//
// It returns the run id, a channel streaming the run's events (closed after
// the final RunCompleted event), a channel carrying at most one terminal
// error, and an immediate error when the launch itself fails: invalid
// configuration, unregistered participant, concurrency limit, or a vetoing
// BeforeRun callback.
//
// Event streaming follows the runner contract; clients should consume the
// events channel or cancel ctx, otherwise delivery stalls against the buffer.
func (e *Engine) Launch(ctx context.Context, config game.Configuration) (string, <-chan core.Event, <-chan error, error) {
	setup, err := game.Generate(config)
	if err != nil {
		return "", nil, nil, fmt.Errorf("generate setup: %w", err)
	}

	return e.LaunchSetup(ctx, setup)
}

// LaunchSetup starts an asynchronous competition run for an already drawn
// setup. Useful for replaying a stored setup or for hand-built scenarios;
// Launch is the usual entry point.
func (e *Engine) LaunchSetup(ctx context.Context, setup *game.Setup) (string, <-chan core.Event, <-chan error, error) {
	e.runsMu.RLock()
	active := len(e.activeRuns)
	e.runsMu.RUnlock()

	if e.config.MaxConcurrentRuns > 0 && active >= e.config.MaxConcurrentRuns {
		return "", nil, nil, fmt.Errorf("concurrent run limit reached (%d)", e.config.MaxConcurrentRuns)
	}

	roster := make([]runner.Agent, 0, len(setup.AgentIDs))
	for _, id := range setup.AgentIDs {
		a, ok := e.GetAgent(id)
		if !ok {
			return "", nil, nil, fmt.Errorf("agent %s is not registered", id)
		}
		roster = append(roster, a)
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, &CallbackContext{Setup: setup}); err != nil {
		return "", nil, nil, fmt.Errorf("before-run callback: %w", err)
	}

	r := runner.New(setup, roster, func(o *runner.Options) {
		o.Config = e.config.Runner
		o.Logger = e.logger
	})

	runID, runEvents, runErrs, err := r.Run(ctx)
	if err != nil {
		return "", nil, nil, err
	}

	e.runsMu.Lock()
	e.activeRuns[runID] = &activeRun{runner: r, setup: setup}
	e.runsMu.Unlock()

	e.logger.Info("competition launched",
		"run_id", runID,
		"agents", len(roster),
		"goods", len(setup.GoodKeys),
	)

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)

	go e.processRun(ctx, runID, r, setup, runEvents, runErrs, eventsCh, errorsCh)

	return runID, eventsCh, errorsCh, nil
}

// LaunchSync draws a setup, runs the competition to completion and returns
// its report. It blocks for the full trade window; use Launch for streaming
// consumption.
func (e *Engine) LaunchSync(ctx context.Context, config game.Configuration) (string, *runner.RunReport, error) {
	runID, events, errs, err := e.Launch(ctx, config)
	if err != nil {
		return "", nil, err
	}

	var runErr error
	for events != nil || errs != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
			} else if runErr == nil {
				runErr = err
			}
		}
	}

	report, _ := e.Report(runID)
	return runID, report, runErr
}

// StopRun requests cooperative termination of a live run by id.
func (e *Engine) StopRun(runID string) error {
	e.runsMu.RLock()
	run, exists := e.activeRuns[runID]
	e.runsMu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	return run.runner.Cancel(runID)
}

// Report returns the final report of a completed run.
func (e *Engine) Report(runID string) (*runner.RunReport, bool) {
	e.runsMu.RLock()
	defer e.runsMu.RUnlock()
	report, ok := e.reports[runID]
	return report, ok
}

// processRun forwards one run's streams to the client until both close,
// dispatching settlement callbacks on the way, then records the report and
// fires the AfterRun hooks.
//
// A settlement callback returning an error cancels the run; the error is
// surfaced on the client's error channel and the stream then drains to its
// regular end (the runner still emits its final report and RunCompleted
// event on cancellation).
func (e *Engine) processRun(
	ctx context.Context,
	runID string,
	r *runner.Runner,
	setup *game.Setup,
	runEvents <-chan core.Event,
	runErrs <-chan error,
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	defer func() {
		close(eventsCh)
		close(errorsCh)
	}()

	for runEvents != nil || runErrs != nil {
		select {
		case ev, ok := <-runEvents:
			if !ok {
				runEvents = nil
				continue
			}

			if err := e.dispatchEventCallbacks(ctx, runID, setup, ev); err != nil {
				e.logger.Warn("settlement callback halted run", "run_id", runID, "error", err)
				if cancelErr := r.Cancel(runID); cancelErr != nil {
					e.logger.Debug("cancel after callback veto", "run_id", runID, "error", cancelErr)
				}
				select {
				case errorsCh <- fmt.Errorf("settlement callback: %w", err):
				default:
				}
			}

			select {
			case eventsCh <- ev:
			case <-ctx.Done():
			}

		case err, ok := <-runErrs:
			if !ok {
				runErrs = nil
				continue
			}
			select {
			case errorsCh <- err:
			default:
			}
		}
	}

	report, _ := r.Report()

	e.runsMu.Lock()
	delete(e.activeRuns, runID)
	if report != nil {
		e.reports[runID] = report
	}
	e.runsMu.Unlock()

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, &CallbackContext{
		RunID:  runID,
		Setup:  setup,
		Report: report,
	}); err != nil {
		e.logger.Warn("after-run callback failed", "run_id", runID, "error", err)
	}
}

// dispatchEventCallbacks routes settlement events to their hook point.
// Events outside the settled/rejected pair carry no hooks.
func (e *Engine) dispatchEventCallbacks(ctx context.Context, runID string, setup *game.Setup, ev core.Event) error {
	var callbackType CallbackType

	switch ev.Type {
	case core.EventTransactionSettled:
		callbackType = CallbackOnTrade
	case core.EventTransactionRejected:
		callbackType = CallbackOnRejection
	default:
		return nil
	}

	return e.callbacks.ExecuteCallbacks(ctx, callbackType, &CallbackContext{
		RunID: runID,
		Setup: setup,
		Event: &ev,
	})
}
