// Package trademesh provides a high-level façade over the competition engine
// and its services (game generation, run orchestration, evaluation, logging)
// enabling rapid construction of multi-agent trading competitions. Most
// applications interact with this package by:
//  1. Creating a TradeMesh via New() (optionally overriding engine tuning)
//  2. Registering participants (baseline or custom strategies)
//  3. Launching competitions asynchronously (Launch) or synchronously (LaunchSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production use typically supplies tuned run windows and a
// structured logger.
package trademesh

import (
	"context"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/engine"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/logging"
	"github.com/hupe1980/trademesh/runner"
)

// Options configures the TradeMesh instance.
type Options struct {
	// EngineConfig carries the concurrency limit, event buffering and the
	// per-run tuning (trade window, message budgets, pending timeout).
	EngineConfig engine.Config

	// Callbacks holds the lifecycle hooks executed around and during runs.
	// Nil means no hooks.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TradeMesh is the high-level façade aggregating the underlying engine.
type TradeMesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new TradeMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *TradeMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})

	return &TradeMesh{opts: opts, engine: e}
}

// RegisterParticipant adds a trading agent to the underlying engine's
// registry, making it eligible for launched competitions.
func (m *TradeMesh) RegisterParticipant(a runner.Agent) { m.engine.Register(a) }

// Launch draws a setup from the configuration and starts an asynchronous
// competition run, returning the run id plus event & error channels.
func (m *TradeMesh) Launch(
	ctx context.Context,
	config game.Configuration,
) (string, <-chan core.Event, <-chan error, error) {
	return m.engine.Launch(ctx, config)
}

// LaunchSync is a synchronous helper that runs a competition to completion
// and returns the run id and its final report.
func (m *TradeMesh) LaunchSync(
	ctx context.Context,
	config game.Configuration,
) (string, *runner.RunReport, error) {
	return m.engine.LaunchSync(ctx, config)
}

// StopRun requests cooperative termination of a live run by id.
func (m *TradeMesh) StopRun(runID string) error { return m.engine.StopRun(runID) }

// Report returns the final report of a completed run.
func (m *TradeMesh) Report(runID string) (*runner.RunReport, bool) {
	return m.engine.Report(runID)
}
