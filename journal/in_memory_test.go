package journal

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
)

// Interface compliance (compile-time assertions)
var _ core.Journal = (*InMemoryJournal)(nil)

func record(id string) core.SettlementRecord {
	return core.SettlementRecord{
		TransactionID: id,
		BuyerID:       "Y",
		SellerID:      "X",
		GoodDeltas:    core.GoodDeltas{"good1": 2},
		Amount:        decimal.NewFromInt(4),
		Timestamp:     time.Now().UTC(),
	}
}

func TestInMemoryJournal_AppendOrderPreserved(t *testing.T) {
	j := NewInMemoryJournal()
	for i := 0; i < 5; i++ {
		if err := j.Append(record(fmt.Sprintf("tx%d", i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if j.Len() != 5 {
		t.Fatalf("expected 5 records, got %d", j.Len())
	}
	out := j.Export()
	for i, rec := range out {
		if rec.TransactionID != fmt.Sprintf("tx%d", i) {
			t.Fatalf("order not preserved at %d: %s", i, rec.TransactionID)
		}
	}
}

func TestInMemoryJournal_ExportIsolation(t *testing.T) {
	j := NewInMemoryJournal()
	if err := j.Append(record("tx1")); err != nil {
		t.Fatal(err)
	}
	out := j.Export()
	out[0].GoodDeltas["good1"] = 99
	if j.Export()[0].GoodDeltas["good1"] != 2 {
		t.Error("exported records must be copies")
	}
}

func TestInMemoryJournal_SnapshotVersioning(t *testing.T) {
	j := NewInMemoryJournal()

	if _, err := j.LatestSnapshot("X"); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	h := core.Holdings{Goods: core.Basket{"good1": 1}, Money: decimal.NewFromInt(4)}
	v1, err := j.SaveSnapshot("X", h)
	if err != nil || v1 != 1 {
		t.Fatalf("first snapshot: v=%d err=%v", v1, err)
	}
	h.Goods["good1"] = 0
	v2, _ := j.SaveSnapshot("X", h)
	if v2 != 2 {
		t.Fatalf("versions must be monotonic, got %d", v2)
	}

	latest, err := j.LatestSnapshot("X")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 2 || latest.Holdings.Goods.Quantity("good1") != 0 {
		t.Errorf("unexpected latest snapshot: %+v", latest)
	}

	latest.Holdings.Goods["good1"] = 42
	again, _ := j.LatestSnapshot("X")
	if again.Holdings.Goods.Quantity("good1") != 0 {
		t.Error("snapshot reads must be copies")
	}
}

func TestInMemoryJournal_Concurrency(t *testing.T) {
	j := NewInMemoryJournal()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := j.Append(record(fmt.Sprintf("tx%d", i))); err != nil {
				t.Errorf("append err: %v", err)
			}
			if _, err := j.SaveSnapshot("X", core.NewHoldings()); err != nil {
				t.Errorf("snapshot err: %v", err)
			}
		}()
	}
	wg.Wait()
	if j.Len() != 100 {
		t.Fatalf("expected 100 records, got %d", j.Len())
	}
	latest, err := j.LatestSnapshot("X")
	if err != nil || latest.Version != 100 {
		t.Fatalf("expected version 100, got %d (%v)", latest.Version, err)
	}
}
