package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
)

// RequestBuilder helps construct transaction requests with fluent chaining
// for tests. Deltas are given from the buyer's perspective; BuildPair derives
// the seller side via Mirror so both requests agree on the trade terms.
// Example:
//
//	buyerReq, sellerReq := NewRequestBuilder("tx-1").
//		Buyer("y").Seller("x").
//		Receive("good1", 2).
//		Amount(4).
//		BuildPair()
type RequestBuilder struct {
	txID   string
	buyer  string
	seller string
	deltas core.GoodDeltas
	amount decimal.Decimal
}

// NewRequestBuilder creates a builder for the given transaction id.
func NewRequestBuilder(txID string) *RequestBuilder {
	return &RequestBuilder{txID: txID, deltas: core.GoodDeltas{}}
}

// Buyer sets the buying party, which is also the sender of the built
// request (chainable).
func (b *RequestBuilder) Buyer(id string) *RequestBuilder {
	b.buyer = id
	return b
}

// Seller sets the selling party (chainable).
func (b *RequestBuilder) Seller(id string) *RequestBuilder {
	b.seller = id
	return b
}

// Receive sets how many units of the good the buyer receives (chainable).
func (b *RequestBuilder) Receive(good string, qty int) *RequestBuilder {
	b.deltas[good] = qty
	return b
}

// Amount sets the money the buyer pays the seller (chainable).
func (b *RequestBuilder) Amount(units int64) *RequestBuilder {
	b.amount = decimal.NewFromInt(units)
	return b
}

// Build returns the buyer-side request.
func (b *RequestBuilder) Build() core.TransactionRequest {
	return core.TransactionRequest{
		TransactionID: b.txID,
		SenderID:      b.buyer,
		BuyerID:       b.buyer,
		SellerID:      b.seller,
		GoodDeltas:    b.deltas.Clone(),
		Amount:        b.amount,
	}
}

// BuildPair returns the matched buyer and seller requests for the trade.
func (b *RequestBuilder) BuildPair() (buyer, seller core.TransactionRequest) {
	buyer = b.Build()
	return buyer, buyer.Mirror()
}
