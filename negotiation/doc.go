// Package negotiation contains concrete implementations of the
// core.SessionStore.
//
// The canonical SessionStore interface and the NegotiationSession state
// machine live in the core package; this package provides the backends that
// hold an agent's live sessions for the duration of a run.
package negotiation
