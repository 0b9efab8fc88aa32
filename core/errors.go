package core

import "fmt"

var (
	// ErrStaleMessage is returned when a message references an unknown,
	// superseded or already terminal negotiation artifact. Handlers discard
	// the message; it is never fatal.
	ErrStaleMessage = fmt.Errorf("stale message")

	// ErrMalformedMessage is returned by boundary validation for messages
	// that must never reach a state machine (missing ids, empty deltas,
	// negative amounts).
	ErrMalformedMessage = fmt.Errorf("malformed message")

	// ErrInsufficientGoods is returned when applying a delta would push a
	// good quantity below zero.
	ErrInsufficientGoods = fmt.Errorf("insufficient goods")

	// ErrInsufficientFunds is returned when applying a delta would push a
	// money balance below zero.
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")

	// ErrInvalidTransition is returned when a negotiation session is asked to
	// perform a transition its current state does not allow.
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
)

// RejectionReason encodes why the controller refused to settle a transaction.
// It travels on the wire inside TransactionRejection messages.
type RejectionReason string

const (
	// ReasonProtocolMismatch: the two submitted requests do not describe the
	// same trade (deltas are not exact negations or amounts differ).
	ReasonProtocolMismatch RejectionReason = "protocol_mismatch"
	// ReasonInsufficientFunds: a party's money balance would go negative.
	ReasonInsufficientFunds RejectionReason = "insufficient_funds"
	// ReasonInsufficientGoods: a party's good quantity would go negative.
	ReasonInsufficientGoods RejectionReason = "insufficient_goods"
	// ReasonTimeout: the counterpart request never arrived within the
	// configured pending window.
	ReasonTimeout RejectionReason = "timeout"
)

// String returns the wire representation of the reason.
func (r RejectionReason) String() string { return string(r) }
