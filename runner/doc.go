// Package runner implements the orchestration layer for one trading run.
//
// The Runner serves as the central coordination hub that manages the complete
// lifecycle of a run: it wires a fresh router, ledger and controller for the
// game setup, admits and starts the agents, lets them trade until the window
// closes, then tears everything down in order and evaluates the outcome.
//
// # Responsibilities (abridged)
//   - Per-run service construction (router, ledger, journal, controller)
//   - Agent admission (game data hand-off) and lifecycle management
//   - Event streaming (async Run + blocking RunSync helper)
//   - Trade-window enforcement and cooperative cancellation
//   - Final report: holdings, transaction log, scores and efficiency
//
// See runner.go for the operational implementation details.
package runner
