package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType classifies the run events the engine streams to clients.
type EventType string

const (
	// EventNegotiationStarted: an initiator opened a dialogue with a CFP.
	EventNegotiationStarted EventType = "negotiation_started"
	// EventProposalMade: a responder put trade terms on the table.
	EventProposalMade EventType = "proposal_made"
	// EventDealMatched: both sides agreed and derived a transaction id.
	EventDealMatched EventType = "deal_matched"
	// EventTransactionSettled: the controller committed a transaction.
	EventTransactionSettled EventType = "transaction_settled"
	// EventTransactionRejected: the controller refused a transaction.
	EventTransactionRejected EventType = "transaction_rejected"
	// EventSessionExpired: a negotiation was abandoned at its local deadline.
	EventSessionExpired EventType = "session_expired"
	// EventRunCompleted: the trade window closed and all agents stopped.
	EventRunCompleted EventType = "run_completed"
)

// Event is the unit of observability a run streams to its client. After
// emission it should be treated as immutable. It captures:
//   - Correlation (RunID, ID, Author)
//   - Classification (Type)
//   - Trade detail where applicable (session, transaction, deltas, amount)
//   - Error / rejection metadata
//   - High precision UTC timestamp
//
// Optional fields are pointers or omitempty maps so absence can be
// distinguished from zero values.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Author    string    `json:"author"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID     *string          `json:"session_id,omitempty"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	Counterparty  *string          `json:"counterparty,omitempty"`
	GoodDeltas    GoodDeltas       `json:"good_deltas,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Reason        *string          `json:"reason,omitempty"`
	ErrorMessage  *string          `json:"error_message,omitempty"`
	Settled       *int             `json:"settled,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a run. Prefer
// the typed constructors below for the common categories.
func NewEvent(runID, author string, t EventType) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// NewNegotiationStartedEvent records an initiator opening a dialogue.
func NewNegotiationStartedEvent(runID, author, sessionID, counterparty string) Event {
	e := NewEvent(runID, author, EventNegotiationStarted)
	e.SessionID = strptr(sessionID)
	e.Counterparty = strptr(counterparty)
	return e
}

// NewProposalMadeEvent records trade terms being put on the table.
func NewProposalMadeEvent(runID, author string, p Proposal) Event {
	e := NewEvent(runID, author, EventProposalMade)
	e.SessionID = strptr(p.DialogueID)
	e.GoodDeltas = p.GoodDeltas.Clone()
	amount := p.Price
	e.Amount = &amount
	return e
}

// NewDealMatchedEvent records an agreed trade heading to the controller.
func NewDealMatchedEvent(runID, author, sessionID, transactionID string) Event {
	e := NewEvent(runID, author, EventDealMatched)
	e.SessionID = strptr(sessionID)
	e.TransactionID = strptr(transactionID)
	return e
}

// NewTransactionSettledEvent records a committed settlement. Deltas are from
// the buyer's perspective, matching the exported transaction log.
func NewTransactionSettledEvent(runID, author string, rec SettlementRecord) Event {
	e := NewEvent(runID, author, EventTransactionSettled)
	e.TransactionID = strptr(rec.TransactionID)
	e.GoodDeltas = rec.GoodDeltas.Clone()
	amount := rec.Amount
	e.Amount = &amount
	return e
}

// NewTransactionRejectedEvent records a controller refusal.
func NewTransactionRejectedEvent(runID, author, transactionID string, reason RejectionReason) Event {
	e := NewEvent(runID, author, EventTransactionRejected)
	e.TransactionID = strptr(transactionID)
	e.Reason = strptr(reason.String())
	return e
}

// NewSessionExpiredEvent records a negotiation abandoned at its deadline.
func NewSessionExpiredEvent(runID, author, sessionID string) Event {
	e := NewEvent(runID, author, EventSessionExpired)
	e.SessionID = strptr(sessionID)
	return e
}

// NewRunCompletedEvent closes a run's event stream with the number of
// settled transactions.
func NewRunCompletedEvent(runID, author string, settled int) Event {
	e := NewEvent(runID, author, EventRunCompleted)
	e.Settled = &settled
	return e
}

// NewID generates a new unique identifier for events, messages and runs.
func NewID() string { return uuid.NewString() }

// IsTerminal reports whether the event closes its run's stream.
func (e Event) IsTerminal() bool { return e.Type == EventRunCompleted }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

func strptr(s string) *string { return &s }
