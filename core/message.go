package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Message is the closed set of protocol payloads exchanged during a
// negotiation and its settlement. Concrete message types implement the
// unexported marker so the set cannot grow outside this package.
type Message interface {
	isMessage()

	// Validate checks the structural constraints of the message. Endpoints
	// validate at the boundary and silently discard anything malformed.
	Validate() error
}

// CFP (call for proposals) opens a negotiation dialogue.
type CFP struct {
	ID         string `json:"id"`
	DialogueID string `json:"dialogue_id"`
	Sender     string `json:"sender"`
	Query      Query  `json:"query"`
}

func (CFP) isMessage() {}

// Validate implements Message.
func (m CFP) Validate() error {
	if m.ID == "" || m.DialogueID == "" || m.Sender == "" {
		return fmt.Errorf("%w: cfp missing id, dialogue id or sender", ErrMalformedMessage)
	}
	return m.Query.Validate()
}

// Proposal answers a CFP with concrete trade terms. A positive good delta
// means the proposing agent gives that many units; Price is the money the
// buyer pays on settlement.
type Proposal struct {
	ID         string          `json:"id"`
	CFPID      string          `json:"cfp_id"`
	DialogueID string          `json:"dialogue_id"`
	Sender     string          `json:"sender"`
	GoodDeltas GoodDeltas      `json:"good_deltas"`
	Price      decimal.Decimal `json:"price"`
}

func (Proposal) isMessage() {}

// Validate implements Message.
func (m Proposal) Validate() error {
	if m.ID == "" || m.CFPID == "" || m.DialogueID == "" || m.Sender == "" {
		return fmt.Errorf("%w: proposal missing id, cfp id, dialogue id or sender", ErrMalformedMessage)
	}
	if m.GoodDeltas.IsZero() {
		return fmt.Errorf("%w: proposal carries no good deltas", ErrMalformedMessage)
	}
	if !m.Price.IsPositive() {
		return fmt.Errorf("%w: proposal price %s is not positive", ErrMalformedMessage, m.Price.String())
	}
	return nil
}

// Accept signals that the initiator takes the proposal as offered.
type Accept struct {
	ProposalID string `json:"proposal_id"`
	DialogueID string `json:"dialogue_id"`
	Sender     string `json:"sender"`
}

func (Accept) isMessage() {}

// Validate implements Message.
func (m Accept) Validate() error {
	if m.ProposalID == "" || m.DialogueID == "" || m.Sender == "" {
		return fmt.Errorf("%w: accept missing proposal id, dialogue id or sender", ErrMalformedMessage)
	}
	return nil
}

// MatchedAccept confirms the acceptance back to the initiator and carries
// the transaction id both sides derived from the agreed terms.
type MatchedAccept struct {
	ProposalID    string `json:"proposal_id"`
	DialogueID    string `json:"dialogue_id"`
	Sender        string `json:"sender"`
	TransactionID string `json:"transaction_id"`
}

func (MatchedAccept) isMessage() {}

// Validate implements Message.
func (m MatchedAccept) Validate() error {
	if m.ProposalID == "" || m.DialogueID == "" || m.Sender == "" || m.TransactionID == "" {
		return fmt.Errorf("%w: matched accept missing a required field", ErrMalformedMessage)
	}
	return nil
}

// TransactionRequest asks the controller to settle one side of an agreed
// trade. Good deltas are from the sender's perspective: positive means the
// sender receives those units. Amount is the money the buyer pays the
// seller, always positive regardless of which side submits.
type TransactionRequest struct {
	TransactionID string          `json:"transaction_id"`
	SenderID      string          `json:"sender_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	GoodDeltas    GoodDeltas      `json:"good_deltas"`
	Amount        decimal.Decimal `json:"amount"`
}

func (TransactionRequest) isMessage() {}

// Validate implements Message.
func (m TransactionRequest) Validate() error {
	if m.TransactionID == "" || m.SenderID == "" || m.BuyerID == "" || m.SellerID == "" {
		return fmt.Errorf("%w: transaction request missing a required id", ErrMalformedMessage)
	}
	if m.BuyerID == m.SellerID {
		return fmt.Errorf("%w: buyer and seller are the same agent", ErrMalformedMessage)
	}
	if m.SenderID != m.BuyerID && m.SenderID != m.SellerID {
		return fmt.Errorf("%w: sender %q is not a party to the transaction", ErrMalformedMessage, m.SenderID)
	}
	if m.GoodDeltas.IsZero() {
		return fmt.Errorf("%w: transaction request carries no good deltas", ErrMalformedMessage)
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("%w: transaction amount %s is not positive", ErrMalformedMessage, m.Amount.String())
	}
	return nil
}

// Counterpart returns the id of the other party to the transaction.
func (m TransactionRequest) Counterpart() string {
	if m.SenderID == m.BuyerID {
		return m.SellerID
	}
	return m.BuyerID
}

// Mirror returns the request the counterparty is expected to submit for the
// same trade: same terms, sender flipped, good deltas negated.
func (m TransactionRequest) Mirror() TransactionRequest {
	return TransactionRequest{
		TransactionID: m.TransactionID,
		SenderID:      m.Counterpart(),
		BuyerID:       m.BuyerID,
		SellerID:      m.SellerID,
		GoodDeltas:    m.GoodDeltas.Negate(),
		Amount:        m.Amount,
	}
}

// TransactionConfirmation notifies a party that its transaction settled.
// Good deltas and the money delta are from the recipient's perspective and
// can be applied directly to its local holdings view.
type TransactionConfirmation struct {
	TransactionID string          `json:"transaction_id"`
	GoodDeltas    GoodDeltas      `json:"good_deltas"`
	MoneyDelta    decimal.Decimal `json:"money_delta"`
}

func (TransactionConfirmation) isMessage() {}

// Validate implements Message.
func (m TransactionConfirmation) Validate() error {
	if m.TransactionID == "" {
		return fmt.Errorf("%w: confirmation missing transaction id", ErrMalformedMessage)
	}
	return nil
}

// TransactionRejection notifies a party that its transaction will not
// settle, with a machine-readable reason.
type TransactionRejection struct {
	TransactionID string          `json:"transaction_id"`
	Reason        RejectionReason `json:"reason"`
	Detail        string          `json:"detail,omitempty"`
}

func (TransactionRejection) isMessage() {}

// Validate implements Message.
func (m TransactionRejection) Validate() error {
	if m.TransactionID == "" {
		return fmt.Errorf("%w: rejection missing transaction id", ErrMalformedMessage)
	}
	if m.Reason == "" {
		return fmt.Errorf("%w: rejection missing reason", ErrMalformedMessage)
	}
	return nil
}

// Envelope routes a protocol message between two addressable endpoints.
type Envelope struct {
	To      string  `json:"to"`
	From    string  `json:"from"`
	Message Message `json:"message"`
}

// NewEnvelope wraps a message for delivery.
func NewEnvelope(from, to string, msg Message) Envelope {
	return Envelope{To: to, From: from, Message: msg}
}

// Validate checks addressing and delegates to the payload.
func (e Envelope) Validate() error {
	if e.To == "" || e.From == "" {
		return fmt.Errorf("%w: envelope missing sender or recipient", ErrMalformedMessage)
	}
	if e.Message == nil {
		return fmt.Errorf("%w: envelope carries no message", ErrMalformedMessage)
	}
	return e.Message.Validate()
}
