package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Basket maps good keys to non-negative integer quantities. A nil Basket is
// treated as empty by all methods.
type Basket map[string]int

// NewBasket creates an empty basket.
func NewBasket() Basket { return Basket{} }

// Quantity returns the held quantity for a good (zero when absent).
func (b Basket) Quantity(good string) int { return b[good] }

// Goods returns the good keys in sorted order for deterministic iteration.
func (b Basket) Goods() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the basket.
func (b Basket) Clone() Basket {
	cp := make(Basket, len(b))
	for k, v := range b {
		cp[k] = v
	}
	return cp
}

// GoodDeltas maps good keys to signed quantity changes. The sign convention
// depends on the carrying message: in a Proposal a positive value means the
// proposing agent gives that many units; in a TransactionRequest a positive
// value means the submitting agent receives them.
type GoodDeltas map[string]int

// Clone returns an independent copy of the delta map.
func (d GoodDeltas) Clone() GoodDeltas {
	cp := make(GoodDeltas, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

// Negate returns a new delta map with every sign flipped.
func (d GoodDeltas) Negate() GoodDeltas {
	neg := make(GoodDeltas, len(d))
	for k, v := range d {
		neg[k] = -v
	}
	return neg
}

// IsZero reports whether the map carries no effective change.
func (d GoodDeltas) IsZero() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

// MirrorOf reports whether other is the exact negation of d, good for good.
// Zero entries must cancel out on both sides; an entry present in one map and
// absent in the other counts as mirrored only when it is zero.
func (d GoodDeltas) MirrorOf(other GoodDeltas) bool {
	for k, v := range d {
		if other[k] != -v {
			return false
		}
	}
	for k, v := range other {
		if d[k] != -v {
			return false
		}
	}
	return true
}

// Canonical renders the deltas deterministically (keys sorted,
// "good:delta" pairs joined by ","). Used for wire logs and for the
// deterministic transaction id derivation, so two independently built but
// equal maps always produce the same string.
func (d GoodDeltas) Canonical() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, d[k]))
	}
	return strings.Join(parts, ",")
}

// Holdings bundles an agent's goods basket with its money balance. Money is
// decimal to keep settlement arithmetic exact; quantities stay integers.
type Holdings struct {
	Goods Basket          `json:"goods"`
	Money decimal.Decimal `json:"money"`
}

// NewHoldings creates empty holdings with a zero money balance.
func NewHoldings() Holdings {
	return Holdings{Goods: NewBasket(), Money: decimal.Zero}
}

// Clone returns a deep copy safe for independent mutation.
func (h Holdings) Clone() Holdings {
	return Holdings{Goods: h.Goods.Clone(), Money: h.Money}
}

// CanApply checks whether applying the good deltas and money delta would keep
// every quantity and the balance non-negative. It returns ErrInsufficientGoods
// or ErrInsufficientFunds (wrapped with detail) on violation.
func (h Holdings) CanApply(deltas GoodDeltas, moneyDelta decimal.Decimal) error {
	for good, delta := range deltas {
		if h.Goods.Quantity(good)+delta < 0 {
			return fmt.Errorf("%w: %s would drop to %d", ErrInsufficientGoods, good, h.Goods.Quantity(good)+delta)
		}
	}
	if h.Money.Add(moneyDelta).IsNegative() {
		return fmt.Errorf("%w: balance would drop to %s", ErrInsufficientFunds, h.Money.Add(moneyDelta).String())
	}
	return nil
}

// Apply returns new holdings with the deltas applied, validating
// non-negativity first. The receiver is never mutated.
func (h Holdings) Apply(deltas GoodDeltas, moneyDelta decimal.Decimal) (Holdings, error) {
	if err := h.CanApply(deltas, moneyDelta); err != nil {
		return Holdings{}, err
	}
	next := h.Clone()
	for good, delta := range deltas {
		next.Goods[good] += delta
	}
	next.Money = next.Money.Add(moneyDelta)
	return next, nil
}

// String renders a compact single-line form for logs.
func (h Holdings) String() string {
	parts := make([]string, 0, len(h.Goods)+1)
	for _, good := range h.Goods.Goods() {
		parts = append(parts, fmt.Sprintf("%s=%d", good, h.Goods[good]))
	}
	parts = append(parts, fmt.Sprintf("money=%s", h.Money.String()))
	return "{" + strings.Join(parts, " ") + "}"
}
