package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

// Event constructor & helper method tests
func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("run-123", "agentX", EventNegotiationStarted)
	if e.Author != "agentX" || e.RunID != "run-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	started := NewNegotiationStartedEvent("run-123", "agentX", "d1", "agentY")
	if started.SessionID == nil || *started.SessionID != "d1" || *started.Counterparty != "agentY" {
		t.Fatalf("NewNegotiationStartedEvent malformed: %+v", started)
	}

	p := Proposal{ID: "p1", CFPID: "c1", DialogueID: "d1", Sender: "agentY",
		GoodDeltas: GoodDeltas{"good1": 2}, Price: decimal.NewFromInt(4)}
	made := NewProposalMadeEvent("run-123", "agentY", p)
	if made.Amount == nil || !made.Amount.Equal(decimal.NewFromInt(4)) || made.GoodDeltas["good1"] != 2 {
		t.Fatalf("NewProposalMadeEvent malformed: %+v", made)
	}

	rejected := NewTransactionRejectedEvent("run-123", "controller", "tx1", ReasonTimeout)
	if rejected.Reason == nil || *rejected.Reason != "timeout" {
		t.Fatalf("NewTransactionRejectedEvent malformed: %+v", rejected)
	}

	completed := NewRunCompletedEvent("run-123", "runner", 3)
	if completed.Settled == nil || *completed.Settled != 3 {
		t.Fatalf("NewRunCompletedEvent malformed: %+v", completed)
	}
	if !completed.IsTerminal() {
		t.Error("run completion must be terminal")
	}
	if rejected.IsTerminal() {
		t.Error("a rejection must not terminate the stream")
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Error("Expected unique IDs")
	}
}
