package core

import "context"

// Router delivers protocol messages between addressable endpoints (agents
// and the controller). Implementations must be safe for concurrent use.
//
// Semantics & Guarantees:
//   - Delivery: at-least-once. Endpoints must tolerate duplicates; the
//     protocol's idempotent handling makes redelivery harmless.
//   - Ordering: FIFO per (sender, recipient) pair. No ordering guarantee
//     across different senders.
//   - Boundary validation: Send rejects malformed envelopes with
//     ErrMalformedMessage (wrapped) so garbage never reaches a mailbox.
type Router interface {
	// Send delivers an envelope to its recipient's mailbox, blocking until
	// the mailbox accepts it or ctx is done.
	Send(ctx context.Context, env Envelope) error

	// Subscribe registers an endpoint and returns its mailbox. Each endpoint
	// id may subscribe once; the channel is closed when the router shuts
	// down.
	Subscribe(endpointID string) (<-chan Envelope, error)
}
