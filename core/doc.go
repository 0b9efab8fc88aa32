// Package core provides the foundational domain types, interfaces and
// execution contexts used by TradeMesh. It defines the core abstractions for:
//
//   - Holdings (per-agent goods basket + money balance)
//   - Protocol messages (the closed CFP → Proposal → Accept → MatchedAccept →
//     TransactionRequest/Confirmation/Rejection set)
//   - NegotiationSession (per agent-pair-per-deal state machine)
//   - Events (immutable trade/run observation records)
//   - AgentContext (scoped execution context handed to trading agents)
//   - Pluggable contracts for the ledger, journal, router and run orchestration
//
// The package intentionally keeps implementation concerns (stores, the
// settlement controller, concrete agents) out of scope, exposing small
// interfaces to enable custom backends and extensions. All exported
// identifiers include concise documentation to aid discoverability and
// external consumption.
package core
