package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// Message discrimination tests
func TestMessages_DiscriminatedUnion(t *testing.T) {
	msgs := []Message{
		CFP{},
		Proposal{},
		Accept{},
		MatchedAccept{},
		TransactionRequest{},
		TransactionConfirmation{},
		TransactionRejection{},
	}
	for _, m := range msgs {
		switch mt := m.(type) {
		case CFP, Proposal, Accept, MatchedAccept, TransactionRequest, TransactionConfirmation, TransactionRejection:
		default:
			t.Fatalf("Unexpected message type: %T (%v)", mt, mt)
		}
	}
}

func TestCFP_Validate(t *testing.T) {
	valid := CFP{
		ID:         NewID(),
		DialogueID: NewID(),
		Sender:     "agentX",
		Query:      Query{Role: RoleSeller, Goods: []string{"good1"}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid cfp rejected: %v", err)
	}

	missing := valid
	missing.Sender = ""
	if !errors.Is(missing.Validate(), ErrMalformedMessage) {
		t.Error("cfp without sender must be malformed")
	}

	badRole := valid
	badRole.Query.Role = "arbitrator"
	if !errors.Is(badRole.Validate(), ErrMalformedMessage) {
		t.Error("unknown role must be malformed")
	}
}

func TestProposal_Validate(t *testing.T) {
	valid := Proposal{
		ID:         NewID(),
		CFPID:      NewID(),
		DialogueID: NewID(),
		Sender:     "agentY",
		GoodDeltas: GoodDeltas{"good1": 2},
		Price:      decimal.NewFromInt(4),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid proposal rejected: %v", err)
	}

	zeroDeltas := valid
	zeroDeltas.GoodDeltas = GoodDeltas{"good1": 0}
	if !errors.Is(zeroDeltas.Validate(), ErrMalformedMessage) {
		t.Error("proposal with no effective deltas must be malformed")
	}

	zeroPrice := valid
	zeroPrice.Price = decimal.Zero
	if !errors.Is(zeroPrice.Validate(), ErrMalformedMessage) {
		t.Error("non-positive price must be malformed")
	}
}

func TestTransactionRequest_Validate(t *testing.T) {
	valid := TransactionRequest{
		TransactionID: "tx1",
		SenderID:      "X",
		BuyerID:       "Y",
		SellerID:      "X",
		GoodDeltas:    GoodDeltas{"good1": -2},
		Amount:        decimal.NewFromInt(4),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	outsider := valid
	outsider.SenderID = "Z"
	if !errors.Is(outsider.Validate(), ErrMalformedMessage) {
		t.Error("sender outside the pair must be malformed")
	}

	selfTrade := valid
	selfTrade.BuyerID = "X"
	if !errors.Is(selfTrade.Validate(), ErrMalformedMessage) {
		t.Error("buyer == seller must be malformed")
	}

	negAmount := valid
	negAmount.Amount = decimal.NewFromInt(-4)
	if !errors.Is(negAmount.Validate(), ErrMalformedMessage) {
		t.Error("negative amount must be malformed")
	}
}

func TestTransactionRequest_Mirror(t *testing.T) {
	req := TransactionRequest{
		TransactionID: "tx1",
		SenderID:      "X",
		BuyerID:       "Y",
		SellerID:      "X",
		GoodDeltas:    GoodDeltas{"good1": -2},
		Amount:        decimal.NewFromInt(4),
	}
	m := req.Mirror()
	if m.SenderID != "Y" || m.TransactionID != "tx1" {
		t.Fatalf("mirror addressing wrong: %+v", m)
	}
	if !req.GoodDeltas.MirrorOf(m.GoodDeltas) {
		t.Error("mirrored deltas must be exact negations")
	}
	if !m.Amount.Equal(req.Amount) {
		t.Error("mirrored amount must match")
	}
	if m.Mirror().SenderID != req.SenderID {
		t.Error("mirror must be an involution on the sender")
	}
}

func TestEnvelope_Validate(t *testing.T) {
	env := NewEnvelope("X", "Y", Accept{ProposalID: "p1", DialogueID: "d1", Sender: "X"})
	if err := env.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	if !errors.Is(Envelope{To: "Y", From: "X"}.Validate(), ErrMalformedMessage) {
		t.Error("envelope without message must be malformed")
	}
	if !errors.Is(NewEnvelope("", "Y", Accept{}).Validate(), ErrMalformedMessage) {
		t.Error("envelope without sender must be malformed")
	}
}
