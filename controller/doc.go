// Package controller implements the settlement authority of a trading run.
//
// Agents negotiate bilaterally, but no trade changes holdings until both
// parties independently submit a TransactionRequest for the same derived
// transaction id and the controller validates the pair against the
// authoritative ledger. The controller is the single writer to the ledger:
// matching, validation and the atomic two-sided apply happen here, along
// with the pending-pool timeout that cleans up after abandoned counterparts.
package controller
