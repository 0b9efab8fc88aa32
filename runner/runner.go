package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/trademesh/agent"
	"github.com/hupe1980/trademesh/controller"
	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/evaluation"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/journal"
	"github.com/hupe1980/trademesh/ledger"
	"github.com/hupe1980/trademesh/logging"
	"github.com/hupe1980/trademesh/router"
)

// FeeSinkID is the ledger account credited with settlement fees when the
// game charges any.
const FeeSinkID = "bank"

// Agent is what the runner drives: the core lifecycle plus game admission.
type Agent interface {
	core.Agent

	// Kind categorizes the implementation for run metadata.
	Kind() string

	// Join installs the game data for the upcoming run.
	Join(info agent.JoinInfo) error
}

// Config holds tuning parameters for run execution.
type Config struct {
	// TradeWindow is how long agents may trade before the run closes.
	TradeWindow time.Duration

	// EventBufferSize sets channel buffering for the event stream.
	EventBufferSize int

	// MaxMessagesPerAgent caps each agent's outbound messages for the run.
	// Zero means unlimited.
	MaxMessagesPerAgent int

	// PendingTimeout is forwarded to the controller: how long a lone
	// settlement request may wait for its counterpart.
	PendingTimeout time.Duration
}

// DefaultConfig provides sensible defaults for short local runs.
var DefaultConfig = Config{
	TradeWindow:         30 * time.Second,
	EventBufferSize:     256,
	MaxMessagesPerAgent: 0,
	PendingTimeout:      30 * time.Second,
}

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Journal receives the settlement log. Defaults to a fresh in-memory
	// journal per runner; inject one to share it across runs.
	Journal core.Journal
}

// RunReport summarizes one completed run.
type RunReport struct {
	RunID          string                   `json:"run_id"`
	Duration       time.Duration            `json:"duration"`
	FinalHoldings  map[string]core.Holdings `json:"final_holdings"`
	Transactions   []core.SettlementRecord  `json:"transactions"`
	Settled        int                      `json:"settled"`
	PendingAtClose int                      `json:"pending_at_close"`
	Result         *evaluation.Result       `json:"result,omitempty"`
}

// Runner executes trading runs for one game setup and agent roster. Every
// call to Run wires a fresh router, ledger and controller, so the same
// runner can execute sequential runs without state bleeding between them.
// Public methods are safe for concurrent use.
type Runner struct {
	setup  *game.Setup
	agents []Agent

	config  Config
	logger  logging.Logger
	journal core.Journal

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
	report     *RunReport
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner for a setup and its agents.
func New(setup *game.Setup, agents []Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.TradeWindow <= 0 {
		opts.Config.TradeWindow = DefaultConfig.TradeWindow
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	if opts.Config.PendingTimeout <= 0 {
		opts.Config.PendingTimeout = DefaultConfig.PendingTimeout
	}

	return &Runner{
		setup:      setup,
		agents:     agents,
		config:     opts.Config,
		logger:     opts.Logger,
		journal:    opts.Journal,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Run starts an asynchronous trading run. It implements core.Runner: the
// events channel closes after the run completes with an EventRunCompleted as
// its final element on the success path, and the error channel carries at
// most one terminal error. The immediate error return covers startup
// failures; on those, nothing keeps running.
func (r *Runner) Run(ctx context.Context) (string, <-chan core.Event, <-chan error, error) {
	if len(r.agents) == 0 {
		return "", nil, nil, fmt.Errorf("no agents to run")
	}

	runID := core.NewID()

	// Fresh per-run stack.
	rt := router.NewInMemoryRouter(func(o *router.Options) {
		o.Logger = r.logger
	})

	var ledgerOpts []func(o *ledger.Options)
	if r.setup.Fee.IsPositive() {
		ledgerOpts = append(ledgerOpts, func(o *ledger.Options) {
			o.FeeSinkID = FeeSinkID
		})
	}
	led := ledger.NewInMemoryLedger(r.setup.Holdings, ledgerOpts...)

	jrn := r.journal
	if jrn == nil {
		jrn = journal.NewInMemoryJournal()
	}

	ctrl := controller.New(led, jrn, rt, func(o *controller.Options) {
		o.Config.Fee = r.setup.Fee
		o.Config.PendingTimeout = r.config.PendingTimeout
		o.Logger = r.logger
	})

	// Subscriptions and admission happen before anything moves.
	inboxes := make(map[string]<-chan core.Envelope, len(r.agents))
	for _, a := range r.agents {
		inbox, err := rt.Subscribe(a.ID())
		if err != nil {
			rt.Close()
			return "", nil, nil, fmt.Errorf("subscribe agent %s: %w", a.ID(), err)
		}
		inboxes[a.ID()] = inbox
	}

	peers := make([]string, 0, len(r.agents))
	for _, a := range r.agents {
		peers = append(peers, a.ID())
	}
	for _, a := range r.agents {
		holdings, ok := r.setup.Holdings[a.ID()]
		params, ok2 := r.setup.Params[a.ID()]
		if !ok || !ok2 {
			rt.Close()
			return "", nil, nil, fmt.Errorf("agent %s is not part of the game setup", a.ID())
		}
		if err := a.Join(agent.JoinInfo{
			Holdings:     holdings,
			Params:       params,
			Peers:        peers,
			ControllerID: ctrl.EndpointID(),
			Fee:          r.setup.Fee,
		}); err != nil {
			rt.Close()
			return "", nil, nil, fmt.Errorf("admit agent %s: %w", a.ID(), err)
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	emit := make(chan core.Event, r.config.EventBufferSize)
	eventsCh := make(chan core.Event, r.config.EventBufferSize)
	errorsCh := make(chan error, 1)

	if err := ctrl.Start(runCtx, runID, emit); err != nil {
		cancelRun()
		rt.Close()
		return "", nil, nil, fmt.Errorf("start controller: %w", err)
	}

	contexts := make([]*core.AgentContext, len(r.agents))
	for i, a := range r.agents {
		actx := core.NewAgentContext(runCtx, runID,
			core.AgentInfo{ID: a.ID(), Kind: a.Kind()},
			rt, inboxes[a.ID()], emit, r.config.MaxMessagesPerAgent, r.logger)
		contexts[i] = actx

		if err := a.Start(actx); err != nil {
			for j := 0; j < i; j++ {
				_ = r.agents[j].Stop(contexts[j])
			}
			cancelRun()
			ctrl.Stop()
			rt.Close()
			return "", nil, nil, fmt.Errorf("start agent %s: %w", a.ID(), err)
		}
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancelRun
	r.mu.Unlock()

	r.logger.Info("run started",
		"run_id", runID,
		"agents", len(r.agents),
		"trade_window", r.config.TradeWindow.String(),
	)

	started := time.Now()

	var wg sync.WaitGroup
	for i, a := range r.agents {
		wg.Add(1)
		go func(a Agent, actx *core.AgentContext) {
			defer wg.Done()
			if err := a.Run(actx); err != nil {
				r.logger.Error("agent run failed", "run_id", runID, "agent_id", a.ID(), "error", err)
				select {
				case errorsCh <- fmt.Errorf("agent %s: %w", a.ID(), err):
				default:
				}
			}
		}(a, contexts[i])
	}

	// Orchestrator: waits out the trade window, then tears down in order —
	// stop trading, stop settling, close transport — and emits the final
	// report before closing the stream.
	go func() {
		timer := time.NewTimer(r.config.TradeWindow)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-runCtx.Done():
		}

		cancelRun()
		wg.Wait()
		ctrl.Stop()
		for i, a := range r.agents {
			if err := a.Stop(contexts[i]); err != nil {
				r.logger.Warn("error stopping agent", "run_id", runID, "agent_id", a.ID(), "error", err)
			}
		}
		rt.Close()

		report := r.buildReport(runID, time.Since(started), led, jrn, ctrl)

		r.mu.Lock()
		r.report = report
		delete(r.activeRuns, runID)
		r.mu.Unlock()

		emit <- core.NewRunCompletedEvent(runID, "runner", report.Settled)
		close(emit)

		r.logger.Info("run completed",
			"run_id", runID,
			"settled", report.Settled,
			"pending_at_close", report.PendingAtClose,
			"duration", report.Duration.String(),
		)
	}()

	// Pump: forwards the merged stream to the client. When the client's
	// context dies it keeps draining so producers are never blocked.
	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()
		for ev := range emit {
			select {
			case eventsCh <- ev:
			case <-ctx.Done():
			}
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel requests cooperative termination of an in-flight run.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()

	return nil
}

// RunSync executes a run and blocks until it completes, discarding the event
// stream. It returns the run report and the terminal error, if any.
func (r *Runner) RunSync(ctx context.Context) (*RunReport, error) {
	_, events, errs, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}

	var runErr error
	for events != nil || errs != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case e, ok := <-errs:
			if !ok {
				errs = nil
			} else if runErr == nil {
				runErr = e
			}
		}
	}

	report, _ := r.Report()
	return report, runErr
}

// Report returns the report of the most recently completed run.
func (r *Runner) Report() (*RunReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report, r.report != nil
}

func (r *Runner) buildReport(runID string, duration time.Duration, led core.Ledger, jrn core.Journal, ctrl *controller.Controller) *RunReport {
	report := &RunReport{
		RunID:          runID,
		Duration:       duration,
		FinalHoldings:  led.SnapshotAll(),
		Transactions:   jrn.Export(),
		Settled:        jrn.Len(),
		PendingAtClose: ctrl.PendingCount(),
	}

	evaluator := evaluation.NewScoreEvaluator(func(o *evaluation.Options) {
		o.Setup = r.setup
		o.Logger = r.logger
	})
	result, err := evaluator.Evaluate(evaluation.OutcomesFromSnapshot(r.setup, report.FinalHoldings))
	if err != nil {
		r.logger.Warn("run evaluation failed", "run_id", runID, "error", err)
	} else {
		report.Result = result
	}

	return report
}
