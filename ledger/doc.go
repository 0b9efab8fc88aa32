// Package ledger contains concrete implementations of the core.Ledger.
//
// The canonical Ledger interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. Implementation
// packages like this one provide the authoritative holdings state backend
// and can be swapped without touching calling code.
//
// Callers should depend on the core interface rather than concrete types so
// they can substitute alternative backends in tests or production.
package ledger
