package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// DeriveTransactionID computes the settlement transaction id from the agreed
// terms. Both parties derive it independently after the accept round; because
// the input is canonical (sorted agent pair, canonical delta encoding,
// normalized amount) they always arrive at the same id, which lets the
// controller pair their requests without any further coordination.
func DeriveTransactionID(buyerID, sellerID, proposalID string, buyerDeltas GoodDeltas, amount decimal.Decimal) string {
	first, second := buyerID, sellerID
	if second < first {
		first, second = second, first
	}
	payload := strings.Join([]string{
		first,
		second,
		proposalID,
		buyerDeltas.Canonical(),
		amount.String(),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
