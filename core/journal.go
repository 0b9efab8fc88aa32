package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRecord is one committed trade in the exported transaction log.
// Good deltas are from the buyer's perspective.
type SettlementRecord struct {
	TransactionID string          `json:"transaction_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	GoodDeltas    GoodDeltas      `json:"good_deltas"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Timestamp     time.Time       `json:"timestamp"`
}

// HoldingsSnapshot is a versioned point-in-time copy of one agent's holdings
// as recorded by the journal after each settlement that touched the agent.
type HoldingsSnapshot struct {
	AgentID   string    `json:"agent_id"`
	Version   int       `json:"version"`
	Holdings  Holdings  `json:"holdings"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is the append-only settlement log of a run. Implementations must
// be safe for concurrent use. Records are immutable once appended and Export
// returns them in append order, so the journal doubles as the audit trail
// the run report is built from.
type Journal interface {
	// Append adds a settlement record to the log.
	Append(rec SettlementRecord) error

	// Export returns a copy of all records in append order.
	Export() []SettlementRecord

	// Len returns the number of appended records.
	Len() int

	// SaveSnapshot stores a post-settlement holdings copy for an agent and
	// returns the snapshot's version (1-based, monotonic per agent).
	SaveSnapshot(agentID string, h Holdings) (int, error)

	// LatestSnapshot returns the most recent holdings snapshot for an agent.
	LatestSnapshot(agentID string) (HoldingsSnapshot, error)
}
