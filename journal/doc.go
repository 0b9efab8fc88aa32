// Package journal contains concrete implementations of the core.Journal.
//
// The canonical Journal interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. The journal is a
// run's audit trail: an append-only settlement log plus versioned holdings
// snapshots, exported at run end for reporting and evaluation.
package journal
