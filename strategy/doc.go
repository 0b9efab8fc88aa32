// Package strategy defines the pluggable decision interface participants
// negotiate with, and ships two implementations: a scripted strategy driven
// by caller-supplied functions (tests, demos) and a log-utility baseline
// that prices trades by marginal utility.
//
// Strategies are pure deciders: they see a call for proposals or a proposal
// together with the agent's current view of its holdings and utility
// parameters, and return a decision. They never touch the router, the ledger
// or any session state, which keeps them trivially testable and swappable.
package strategy
