package core

import (
	"fmt"
	"sync"
	"time"
)

// SessionState enumerates the lifecycle phases of a negotiation session.
type SessionState int

const (
	// StateInit is the state of a freshly created session.
	StateInit SessionState = iota
	// StateCFPSent: the initiator has sent its call for proposals.
	StateCFPSent
	// StateProposed: a proposal is on the table (received by the initiator,
	// or made by the responder).
	StateProposed
	// StateAccepted: the proposal has been accepted but the acceptance has
	// not yet been matched by the counterparty.
	StateAccepted
	// StateMatched: both sides agreed; the transaction request has been
	// handed to the controller and the session awaits its verdict.
	StateMatched
	// StateCommitted: the controller confirmed settlement. Terminal.
	StateCommitted
	// StateAborted: the negotiation ended without a trade. Terminal.
	StateAborted
)

var sessionStateNames = map[SessionState]string{
	StateInit:      "INIT",
	StateCFPSent:   "CFP_SENT",
	StateProposed:  "PROPOSED",
	StateAccepted:  "ACCEPTED",
	StateMatched:   "MATCHED",
	StateCommitted: "COMMITTED",
	StateAborted:   "ABORTED",
}

// String returns the canonical upper-case state name.
func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool { return s == StateCommitted || s == StateAborted }

// NegotiationSession tracks one side of a bilateral negotiation dialogue.
// Each party keeps its own session keyed by the shared dialogue id; the
// session enforces the protocol's state machine and rejects stale or
// out-of-order messages with ErrStaleMessage so handlers can discard them.
//
// All transition methods are safe for concurrent use.
type NegotiationSession struct {
	// ID is the dialogue id shared by both parties.
	ID string `json:"id"`
	// SelfID and CounterpartyID identify the two parties from this side's
	// point of view.
	SelfID         string `json:"self_id"`
	CounterpartyID string `json:"counterparty_id"`
	// Role is the side of the trade this party takes.
	Role Role `json:"role"`
	// Initiator is true for the party that opened the dialogue with a CFP.
	Initiator bool `json:"initiator"`
	// Deadline bounds the negotiation phase. Sessions past the deadline in a
	// pre-matched state are aborted locally; matched sessions are left to the
	// controller's pending timeout.
	Deadline time.Time `json:"deadline"`

	CreateTime     time.Time `json:"create_time"`
	LastUpdateTime time.Time `json:"last_update_time"`

	state         SessionState
	cfpID         string
	proposal      *Proposal
	transactionID string
	request       *TransactionRequest
	abortReason   string

	mu sync.Mutex
}

// NewNegotiationSession creates a session in StateInit.
func NewNegotiationSession(dialogueID, selfID, counterpartyID string, role Role, initiator bool, deadline time.Time) *NegotiationSession {
	now := time.Now()
	return &NegotiationSession{
		ID:             dialogueID,
		SelfID:         selfID,
		CounterpartyID: counterpartyID,
		Role:           role,
		Initiator:      initiator,
		Deadline:       deadline,
		CreateTime:     now,
		LastUpdateTime: now,
		state:          StateInit,
	}
}

// State returns the current lifecycle state.
func (s *NegotiationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Terminal reports whether the session reached a terminal state.
func (s *NegotiationSession) Terminal() bool { return s.State().Terminal() }

// AbortReason returns the recorded reason when the session was aborted.
func (s *NegotiationSession) AbortReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortReason
}

// AgreedProposal returns a copy of the proposal on the table, if any.
func (s *NegotiationSession) AgreedProposal() (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proposal == nil {
		return Proposal{}, false
	}
	p := *s.proposal
	p.GoodDeltas = p.GoodDeltas.Clone()
	return p, true
}

// TransactionID returns the derived settlement id once the session is
// matched, and "" before that.
func (s *NegotiationSession) TransactionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionID
}

// Expired reports whether the session should be abandoned locally: the
// deadline has passed and the session has not progressed to MATCHED. Once
// matched, the outcome belongs to the controller and local expiry no longer
// applies.
func (s *NegotiationSession) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.state == StateMatched {
		return false
	}
	return now.After(s.Deadline)
}

// SendCFP records the initiator's outgoing call for proposals.
// Transition: INIT -> CFP_SENT.
func (s *NegotiationSession) SendCFP(cfp CFP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInit || !s.Initiator {
		return fmt.Errorf("%w: cannot send cfp in state %s", ErrInvalidTransition, s.state)
	}
	s.cfpID = cfp.ID
	s.setState(StateCFPSent)
	return nil
}

// Propose records the responder's own proposal, generated in reply to the
// counterparty's CFP. Transition: INIT -> PROPOSED.
func (s *NegotiationSession) Propose(cfp CFP, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInit || s.Initiator {
		return fmt.Errorf("%w: cannot propose in state %s", ErrInvalidTransition, s.state)
	}
	if cfp.DialogueID != s.ID || cfp.Sender != s.CounterpartyID {
		return fmt.Errorf("%w: cfp does not belong to this dialogue", ErrStaleMessage)
	}
	s.cfpID = cfp.ID
	s.storeProposal(p)
	s.setState(StateProposed)
	return nil
}

// HandleProposal records the counterparty's proposal on the initiator side.
// Transition: CFP_SENT -> PROPOSED.
func (s *NegotiationSession) HandleProposal(p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCFPSent {
		return fmt.Errorf("%w: proposal in state %s", ErrStaleMessage, s.state)
	}
	if p.DialogueID != s.ID || p.CFPID != s.cfpID || p.Sender != s.CounterpartyID {
		return fmt.Errorf("%w: proposal does not answer this session's cfp", ErrStaleMessage)
	}
	s.storeProposal(p)
	s.setState(StateProposed)
	return nil
}

// MarkAccepted records this party's own decision to accept the proposal on
// the table. Transition: PROPOSED -> ACCEPTED.
func (s *NegotiationSession) MarkAccepted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProposed || s.proposal == nil {
		return fmt.Errorf("%w: cannot accept in state %s", ErrInvalidTransition, s.state)
	}
	s.setState(StateAccepted)
	return nil
}

// HandleAccept records the counterparty's acceptance of this party's own
// proposal. Transition: PROPOSED -> ACCEPTED.
func (s *NegotiationSession) HandleAccept(a Accept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProposed || s.proposal == nil {
		return fmt.Errorf("%w: accept in state %s", ErrStaleMessage, s.state)
	}
	if a.DialogueID != s.ID || a.ProposalID != s.proposal.ID || a.Sender != s.CounterpartyID {
		return fmt.Errorf("%w: accept does not reference this session's proposal", ErrStaleMessage)
	}
	s.setState(StateAccepted)
	return nil
}

// Match derives the transaction id, builds this party's settlement request
// and moves the session to MATCHED. The responder calls it right after
// HandleAccept; the initiator goes through HandleMatchedAccept instead.
// Transition: ACCEPTED -> MATCHED.
func (s *NegotiationSession) Match() (TransactionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAccepted || s.proposal == nil {
		return TransactionRequest{}, fmt.Errorf("%w: cannot match in state %s", ErrInvalidTransition, s.state)
	}
	req := s.buildRequest()
	s.transactionID = req.TransactionID
	s.request = &req
	s.setState(StateMatched)
	return req, nil
}

// HandleMatchedAccept processes the counterparty's matched accept on the
// initiator side, cross-checking that both parties derived the same
// transaction id. Transition: ACCEPTED -> MATCHED.
func (s *NegotiationSession) HandleMatchedAccept(ma MatchedAccept) (TransactionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAccepted || s.proposal == nil {
		return TransactionRequest{}, fmt.Errorf("%w: matched accept in state %s", ErrStaleMessage, s.state)
	}
	if ma.DialogueID != s.ID || ma.ProposalID != s.proposal.ID || ma.Sender != s.CounterpartyID {
		return TransactionRequest{}, fmt.Errorf("%w: matched accept does not reference this session's proposal", ErrStaleMessage)
	}
	req := s.buildRequest()
	if ma.TransactionID != req.TransactionID {
		return TransactionRequest{}, fmt.Errorf("%w: transaction id mismatch", ErrStaleMessage)
	}
	s.transactionID = req.TransactionID
	s.request = &req
	s.setState(StateMatched)
	return req, nil
}

// Request re-emits the stored settlement request, for redelivery after a
// matched session saw no controller verdict. The second return is false
// before the session is matched.
func (s *NegotiationSession) Request() (TransactionRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil {
		return TransactionRequest{}, false
	}
	return *s.request, true
}

// HandleConfirmation finalizes the session after the controller settled the
// transaction. Transition: MATCHED -> COMMITTED.
func (s *NegotiationSession) HandleConfirmation(c TransactionConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitted && c.TransactionID == s.transactionID {
		return nil // redelivered confirmation
	}
	if s.state != StateMatched {
		return fmt.Errorf("%w: confirmation in state %s", ErrStaleMessage, s.state)
	}
	if c.TransactionID != s.transactionID {
		return fmt.Errorf("%w: confirmation for unknown transaction %s", ErrStaleMessage, c.TransactionID)
	}
	s.setState(StateCommitted)
	return nil
}

// HandleRejection aborts the session after the controller refused the
// transaction. Transition: MATCHED -> ABORTED.
func (s *NegotiationSession) HandleRejection(r TransactionRejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateMatched || r.TransactionID != s.transactionID {
		return fmt.Errorf("%w: rejection in state %s", ErrStaleMessage, s.state)
	}
	s.abortReason = r.Reason.String()
	s.setState(StateAborted)
	return nil
}

// Abort ends the negotiation without a trade from any non-terminal state.
// Aborting an already aborted session is a no-op; aborting a committed one
// is an error.
func (s *NegotiationSession) Abort(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAborted:
		return nil
	case StateCommitted:
		return fmt.Errorf("%w: cannot abort a committed session", ErrInvalidTransition)
	}
	s.abortReason = reason
	s.setState(StateAborted)
	return nil
}

// buildRequest assembles this party's settlement request from the agreed
// proposal. Proposal deltas are from the proposer's give-perspective, the
// request wants the sender's receive-perspective, so the proposer negates.
// Callers must hold s.mu.
func (s *NegotiationSession) buildRequest() TransactionRequest {
	own := s.proposal.GoodDeltas.Clone()
	if s.proposal.Sender == s.SelfID {
		own = own.Negate()
	}

	buyerID, sellerID := s.SelfID, s.CounterpartyID
	if s.Role == RoleSeller {
		buyerID, sellerID = s.CounterpartyID, s.SelfID
	}

	buyerDeltas := own
	if s.SelfID != buyerID {
		buyerDeltas = own.Negate()
	}

	return TransactionRequest{
		TransactionID: DeriveTransactionID(buyerID, sellerID, s.proposal.ID, buyerDeltas, s.proposal.Price),
		SenderID:      s.SelfID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		GoodDeltas:    own,
		Amount:        s.proposal.Price,
	}
}

func (s *NegotiationSession) storeProposal(p Proposal) {
	cp := p
	cp.GoodDeltas = p.GoodDeltas.Clone()
	s.proposal = &cp
}

func (s *NegotiationSession) setState(next SessionState) {
	s.state = next
	s.LastUpdateTime = time.Now()
}

// SessionStore keeps the live negotiation sessions owned by one agent.
// Implementations must be safe for concurrent use. Stored sessions are live
// pointers: transition methods act on the stored instance directly.
type SessionStore interface {
	// Put stores a session under its dialogue id.
	Put(s *NegotiationSession) error

	// Get retrieves a session by dialogue id.
	Get(dialogueID string) (*NegotiationSession, error)

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(dialogueID string) error

	// Active returns the stored sessions in unspecified order.
	Active() []*NegotiationSession
}
