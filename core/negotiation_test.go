package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fullDance walks two sessions through the whole protocol up to MATCHED and
// returns both sides plus their settlement requests. X initiates as seller
// of 2 units of good1 at price 4; Y responds as buyer.
func fullDance(t *testing.T) (sx, sy *NegotiationSession, reqX, reqY TransactionRequest) {
	t.Helper()

	dialogueID := NewID()
	deadline := time.Now().Add(time.Minute)

	sx = NewNegotiationSession(dialogueID, "X", "Y", RoleSeller, true, deadline)
	sy = NewNegotiationSession(dialogueID, "Y", "X", RoleBuyer, false, deadline)

	cfp := CFP{
		ID:         NewID(),
		DialogueID: dialogueID,
		Sender:     "X",
		Query:      Query{Role: RoleSeller, Goods: []string{"good1"}},
	}
	if err := sx.SendCFP(cfp); err != nil {
		t.Fatalf("SendCFP: %v", err)
	}

	// Y offers to take 2 units of good1 for 4 money. Proposal deltas are
	// give-perspective, so the buying proposer carries a negative entry.
	proposal := Proposal{
		ID:         NewID(),
		CFPID:      cfp.ID,
		DialogueID: dialogueID,
		Sender:     "Y",
		GoodDeltas: GoodDeltas{"good1": -2},
		Price:      decimal.NewFromInt(4),
	}
	if err := sy.Propose(cfp, proposal); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if err := sx.HandleProposal(proposal); err != nil {
		t.Fatalf("HandleProposal: %v", err)
	}

	if err := sx.MarkAccepted(); err != nil {
		t.Fatalf("MarkAccepted: %v", err)
	}
	accept := Accept{ProposalID: proposal.ID, DialogueID: dialogueID, Sender: "X"}
	if err := sy.HandleAccept(accept); err != nil {
		t.Fatalf("HandleAccept: %v", err)
	}

	var err error
	reqY, err = sy.Match()
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	ma := MatchedAccept{
		ProposalID:    proposal.ID,
		DialogueID:    dialogueID,
		Sender:        "Y",
		TransactionID: reqY.TransactionID,
	}
	reqX, err = sx.HandleMatchedAccept(ma)
	if err != nil {
		t.Fatalf("HandleMatchedAccept: %v", err)
	}

	return sx, sy, reqX, reqY
}

func TestNegotiationSession_HappyPath(t *testing.T) {
	sx, sy, reqX, reqY := fullDance(t)

	if sx.State() != StateMatched || sy.State() != StateMatched {
		t.Fatalf("both sides should be MATCHED, got %s / %s", sx.State(), sy.State())
	}
	if reqX.TransactionID != reqY.TransactionID {
		t.Fatalf("parties derived different transaction ids: %s vs %s", reqX.TransactionID, reqY.TransactionID)
	}
	if reqX.BuyerID != "Y" || reqX.SellerID != "X" || reqY.BuyerID != "Y" {
		t.Errorf("role assignment wrong: %+v / %+v", reqX, reqY)
	}
	if reqX.GoodDeltas["good1"] != -2 || reqY.GoodDeltas["good1"] != 2 {
		t.Errorf("seller gives and buyer receives: %+v / %+v", reqX.GoodDeltas, reqY.GoodDeltas)
	}
	if !reqX.GoodDeltas.MirrorOf(reqY.GoodDeltas) {
		t.Error("the two requests must mirror each other")
	}

	// settlement verdict finalizes both sides
	conf := TransactionConfirmation{TransactionID: reqX.TransactionID, GoodDeltas: reqX.GoodDeltas, MoneyDelta: reqX.Amount}
	if err := sx.HandleConfirmation(conf); err != nil {
		t.Fatalf("HandleConfirmation: %v", err)
	}
	if sx.State() != StateCommitted {
		t.Fatalf("expected COMMITTED, got %s", sx.State())
	}
	// redelivered confirmation is harmless
	if err := sx.HandleConfirmation(conf); err != nil {
		t.Errorf("redelivered confirmation should be a no-op, got %v", err)
	}

	rej := TransactionRejection{TransactionID: reqY.TransactionID, Reason: ReasonInsufficientFunds}
	if err := sy.HandleRejection(rej); err != nil {
		t.Fatalf("HandleRejection: %v", err)
	}
	if sy.State() != StateAborted || sy.AbortReason() != "insufficient_funds" {
		t.Errorf("rejection should abort with reason: %s %q", sy.State(), sy.AbortReason())
	}
}

func TestNegotiationSession_StaleMessagesLeaveStateUntouched(t *testing.T) {
	dialogueID := NewID()
	deadline := time.Now().Add(time.Minute)
	sx := NewNegotiationSession(dialogueID, "X", "Y", RoleSeller, true, deadline)

	cfp := CFP{ID: NewID(), DialogueID: dialogueID, Sender: "X", Query: Query{Role: RoleSeller, Goods: []string{"good1"}}}
	if err := sx.SendCFP(cfp); err != nil {
		t.Fatalf("SendCFP: %v", err)
	}

	wrongCFP := Proposal{
		ID: NewID(), CFPID: NewID(), DialogueID: dialogueID, Sender: "Y",
		GoodDeltas: GoodDeltas{"good1": -2}, Price: decimal.NewFromInt(4),
	}
	if err := sx.HandleProposal(wrongCFP); !errors.Is(err, ErrStaleMessage) {
		t.Fatalf("proposal answering a foreign cfp must be stale, got %v", err)
	}
	if sx.State() != StateCFPSent {
		t.Errorf("stale message must not advance the state, got %s", sx.State())
	}

	if err := sx.HandleConfirmation(TransactionConfirmation{TransactionID: "tx?"}); !errors.Is(err, ErrStaleMessage) {
		t.Errorf("confirmation before matching must be stale, got %v", err)
	}
}

func TestNegotiationSession_MatchedAcceptIDMismatchIsStale(t *testing.T) {
	dialogueID := NewID()
	deadline := time.Now().Add(time.Minute)
	sx := NewNegotiationSession(dialogueID, "X", "Y", RoleSeller, true, deadline)

	cfp := CFP{ID: NewID(), DialogueID: dialogueID, Sender: "X", Query: Query{Role: RoleSeller, Goods: []string{"good1"}}}
	_ = sx.SendCFP(cfp)
	proposal := Proposal{
		ID: NewID(), CFPID: cfp.ID, DialogueID: dialogueID, Sender: "Y",
		GoodDeltas: GoodDeltas{"good1": -2}, Price: decimal.NewFromInt(4),
	}
	if err := sx.HandleProposal(proposal); err != nil {
		t.Fatalf("HandleProposal: %v", err)
	}
	if err := sx.MarkAccepted(); err != nil {
		t.Fatalf("MarkAccepted: %v", err)
	}

	ma := MatchedAccept{ProposalID: proposal.ID, DialogueID: dialogueID, Sender: "Y", TransactionID: "doctored"}
	if _, err := sx.HandleMatchedAccept(ma); !errors.Is(err, ErrStaleMessage) {
		t.Fatalf("transaction id mismatch must be stale, got %v", err)
	}
	if sx.State() != StateAccepted {
		t.Errorf("failed match must not advance the state, got %s", sx.State())
	}
	if _, ok := sx.Request(); ok {
		t.Error("no request may exist before a successful match")
	}
}

func TestNegotiationSession_AbortSemantics(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	s := NewNegotiationSession(NewID(), "X", "Y", RoleBuyer, true, deadline)

	if err := s.Abort("declined"); err != nil {
		t.Fatalf("abort from INIT: %v", err)
	}
	if s.State() != StateAborted || s.AbortReason() != "declined" {
		t.Fatalf("unexpected aborted state: %s %q", s.State(), s.AbortReason())
	}
	if err := s.Abort("again"); err != nil {
		t.Errorf("re-abort should be a no-op, got %v", err)
	}
	if s.AbortReason() != "declined" {
		t.Errorf("re-abort must not overwrite the reason, got %q", s.AbortReason())
	}

	sx, _, reqX, _ := fullDance(t)
	conf := TransactionConfirmation{TransactionID: reqX.TransactionID}
	if err := sx.HandleConfirmation(conf); err != nil {
		t.Fatalf("HandleConfirmation: %v", err)
	}
	if err := sx.Abort("too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("aborting a committed session must fail, got %v", err)
	}
}

func TestNegotiationSession_ExpiryStopsAtMatched(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	s := NewNegotiationSession(NewID(), "X", "Y", RoleSeller, true, past)
	if !s.Expired(time.Now()) {
		t.Error("pre-matched session past its deadline must expire")
	}

	sx, sy, _, _ := fullDance(t)
	sx.Deadline = past
	sy.Deadline = past
	if sx.Expired(time.Now()) || sy.Expired(time.Now()) {
		t.Error("matched sessions must not expire locally; the controller decides")
	}
}

func TestNegotiationSession_RequestRedelivery(t *testing.T) {
	_, sy, _, reqY := fullDance(t)

	again, ok := sy.Request()
	if !ok {
		t.Fatal("matched session must re-emit its request")
	}
	if again.TransactionID != reqY.TransactionID || !again.Amount.Equal(reqY.Amount) {
		t.Errorf("re-emitted request differs: %+v vs %+v", again, reqY)
	}
}

func TestDeriveTransactionID_CanonicalInputs(t *testing.T) {
	deltas := GoodDeltas{"good1": 2}
	amount := decimal.NewFromInt(4)

	a := DeriveTransactionID("Y", "X", "p1", deltas, amount)
	b := DeriveTransactionID("Y", "X", "p1", GoodDeltas{"good1": 2}, decimal.NewFromInt(4))
	if a != b {
		t.Fatal("equal terms must derive equal ids")
	}
	if DeriveTransactionID("Y", "X", "p2", deltas, amount) == a {
		t.Error("different proposal must derive a different id")
	}
	if DeriveTransactionID("Y", "X", "p1", GoodDeltas{"good1": 3}, amount) == a {
		t.Error("different deltas must derive a different id")
	}
	if DeriveTransactionID("Y", "X", "p1", deltas, decimal.NewFromInt(5)) == a {
		t.Error("different amount must derive a different id")
	}
}
