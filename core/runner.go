package core

import "context"

// Runner defines the minimal orchestration contract for executing one
// trading run over a registered set of agents. It provides:
//   - Asynchronous execution via Run (streaming events + terminal error channel)
//   - Cooperative cancellation through Cancel
//   - Stable run identifiers for tracking / external control
//
// Semantics & Guarantees:
//   - Event Ordering: Events from a single author are delivered in emission
//     order; events from different authors interleave arbitrarily.
//   - Channel Lifecycle: The events channel closes after the run completes
//     (trade window elapsed, error, or cancellation), with an
//     EventRunCompleted as its final element on the success path. The error
//     channel carries at most one terminal error then closes.
//   - Cancellation: Context cancellation or explicit Cancel(runID) stops all
//     agents and the controller, then closes the channels.
type Runner interface {
	// Run starts an asynchronous trading run. It returns:
	//   runID    - stable identifier for cancellation / tracking
	//   eventsCh - ordered stream of run events (closed on completion)
	//   errorsCh - terminal error channel (size 1, closed after send/none)
	// The immediate error return covers startup failures (e.g. a mailbox
	// already taken).
	Run(ctx context.Context) (string, <-chan Event, <-chan error, error)

	// Cancel requests cooperative termination of an in-flight run. It is
	// safe to call at any time; cancelling an unknown or already finished
	// run returns an error describing the condition.
	Cancel(runID string) error
}
