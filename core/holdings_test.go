package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBasket_CloneIsolation(t *testing.T) {
	b := Basket{"good1": 3, "good2": 1}
	cp := b.Clone()
	cp["good1"] = 99
	if b.Quantity("good1") != 3 {
		t.Errorf("clone mutation leaked into original: %+v", b)
	}
	goods := b.Goods()
	if len(goods) != 2 || goods[0] != "good1" || goods[1] != "good2" {
		t.Errorf("Goods should return sorted keys, got %v", goods)
	}
}

func TestGoodDeltas_NegateAndMirror(t *testing.T) {
	d := GoodDeltas{"good1": -2, "good2": 1}
	neg := d.Negate()
	if neg["good1"] != 2 || neg["good2"] != -1 {
		t.Fatalf("Negate wrong: %+v", neg)
	}
	if !d.MirrorOf(neg) || !neg.MirrorOf(d) {
		t.Error("delta and its negation should mirror each other")
	}
	if d.MirrorOf(GoodDeltas{"good1": 2}) {
		t.Error("missing non-zero entry must break the mirror")
	}
	if !(GoodDeltas{"good1": 1, "good2": 0}).MirrorOf(GoodDeltas{"good1": -1}) {
		t.Error("zero entries should not break the mirror")
	}
}

func TestGoodDeltas_IsZero(t *testing.T) {
	if !(GoodDeltas{}).IsZero() || !(GoodDeltas{"g": 0}).IsZero() {
		t.Error("empty and all-zero maps are zero")
	}
	if (GoodDeltas{"g": 1}).IsZero() {
		t.Error("non-zero entry should not be zero")
	}
}

func TestGoodDeltas_CanonicalDeterministic(t *testing.T) {
	a := GoodDeltas{"good2": -1, "good1": 2}
	b := GoodDeltas{"good1": 2, "good2": -1}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("equal maps must encode identically: %q vs %q", a.Canonical(), b.Canonical())
	}
	if a.Canonical() != "good1:2,good2:-1" {
		t.Errorf("unexpected encoding: %q", a.Canonical())
	}
}

func TestHoldings_ApplyMovesGoodsAndMoney(t *testing.T) {
	h := Holdings{Goods: Basket{"good1": 3}, Money: decimal.Zero}

	next, err := h.Apply(GoodDeltas{"good1": -2}, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if next.Goods.Quantity("good1") != 1 || !next.Money.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected holdings after apply: %s", next)
	}
	// receiver untouched
	if h.Goods.Quantity("good1") != 3 || !h.Money.IsZero() {
		t.Errorf("Apply must not mutate the receiver: %s", h)
	}
}

func TestHoldings_ApplyRejectsNegativeQuantity(t *testing.T) {
	h := Holdings{Goods: Basket{"good1": 1}, Money: decimal.NewFromInt(10)}

	_, err := h.Apply(GoodDeltas{"good1": -2}, decimal.Zero)
	if !errors.Is(err, ErrInsufficientGoods) {
		t.Fatalf("expected ErrInsufficientGoods, got %v", err)
	}
}

func TestHoldings_ApplyRejectsNegativeBalance(t *testing.T) {
	h := Holdings{Goods: Basket{}, Money: decimal.NewFromInt(3)}

	_, err := h.Apply(GoodDeltas{"good1": 2}, decimal.NewFromInt(-4))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !h.Money.Equal(decimal.NewFromInt(3)) {
		t.Error("failed apply must leave the receiver unchanged")
	}
}
