package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Transfer describes the two-sided atomic exchange the controller commits
// once it has matched a transaction pair. Good deltas are from the buyer's
// perspective (positive = buyer receives); the seller applies the exact
// negation. Amount flows buyer -> seller, Fee flows buyer -> fee sink.
type Transfer struct {
	TransactionID string          `json:"transaction_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	BuyerDeltas   GoodDeltas      `json:"buyer_deltas"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
}

// Validate checks the structural constraints of a transfer.
func (t Transfer) Validate() error {
	if t.TransactionID == "" || t.BuyerID == "" || t.SellerID == "" {
		return fmt.Errorf("%w: transfer missing a required id", ErrMalformedMessage)
	}
	if t.BuyerID == t.SellerID {
		return fmt.Errorf("%w: buyer and seller are the same agent", ErrMalformedMessage)
	}
	if t.BuyerDeltas.IsZero() {
		return fmt.Errorf("%w: transfer carries no good deltas", ErrMalformedMessage)
	}
	if t.Amount.IsNegative() || t.Fee.IsNegative() {
		return fmt.Errorf("%w: transfer amount or fee is negative", ErrMalformedMessage)
	}
	return nil
}

// BuyerMoneyDelta is the signed money change applied to the buyer.
func (t Transfer) BuyerMoneyDelta() decimal.Decimal { return t.Amount.Add(t.Fee).Neg() }

// SellerMoneyDelta is the signed money change applied to the seller.
func (t Transfer) SellerMoneyDelta() decimal.Decimal { return t.Amount }

// Ledger is the authoritative holdings state of a run. Implementations must
// be safe for concurrent use.
//
// Semantics & Guarantees:
//   - Atomicity: Apply validates both sides (every resulting quantity and
//     balance non-negative) before mutating anything; on error the ledger is
//     unchanged.
//   - Typed failures: solvency violations surface as ErrInsufficientGoods /
//     ErrInsufficientFunds (wrapped) so callers can map them to rejection
//     reasons.
//   - Isolation: Snapshot returns a defensive copy; mutating it never
//     affects the ledger.
type Ledger interface {
	// Snapshot returns a copy of one agent's current holdings.
	Snapshot(agentID string) (Holdings, error)

	// SnapshotAll returns a copy of every agent's current holdings.
	SnapshotAll() map[string]Holdings

	// Apply atomically settles a transfer against both parties.
	Apply(t Transfer) error

	// Agents returns the registered agent ids in sorted order.
	Agents() []string
}
