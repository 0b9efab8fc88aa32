package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/trademesh/core"
)

// InMemoryLedger is an in-process core.Ledger implementation keeping all
// holdings in a map guarded by an RWMutex. Holdings are copied on read and
// write so callers can never alias internal state.
//
// Apply is all-or-nothing: both parties are validated against the currently
// committed state inside one critical section, and only if both sides pass is
// either side mutated. Concurrent transfers therefore serialize on the lock,
// which keeps every quantity and balance provably non-negative.
type InMemoryLedger struct {
	mu       sync.RWMutex
	holdings map[string]core.Holdings
	feeSink  string
}

// Options configures the in-memory ledger.
type Options struct {
	// FeeSinkID names an extra account credited with transfer fees. When
	// empty, fees leave circulation.
	FeeSinkID string
}

// NewInMemoryLedger constructs a ledger seeded with the given holdings. The
// input map is deep-copied.
func NewInMemoryLedger(initial map[string]core.Holdings, optFns ...func(o *Options)) *InMemoryLedger {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	holdings := make(map[string]core.Holdings, len(initial)+1)
	for id, h := range initial {
		holdings[id] = h.Clone()
	}

	if opts.FeeSinkID != "" {
		if _, ok := holdings[opts.FeeSinkID]; !ok {
			holdings[opts.FeeSinkID] = core.NewHoldings()
		}
	}

	return &InMemoryLedger{holdings: holdings, feeSink: opts.FeeSinkID}
}

// Snapshot returns a copy of one agent's holdings or ErrUnknownAgent.
func (l *InMemoryLedger) Snapshot(agentID string) (core.Holdings, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.holdings[agentID]
	if !ok {
		return core.Holdings{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	return h.Clone(), nil
}

// SnapshotAll returns a copy of every agent's holdings.
func (l *InMemoryLedger) SnapshotAll() map[string]core.Holdings {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := make(map[string]core.Holdings, len(l.holdings))
	for id, h := range l.holdings {
		cp[id] = h.Clone()
	}

	return cp
}

// Agents returns the registered agent ids in sorted order.
func (l *InMemoryLedger) Agents() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.holdings))
	for id := range l.holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Apply atomically settles a transfer against both parties. On any
// validation failure the ledger is left untouched and the error wraps the
// typed core sentinel (ErrInsufficientGoods / ErrInsufficientFunds) so the
// controller can map it to a rejection reason.
func (l *InMemoryLedger) Apply(t core.Transfer) error {
	if err := t.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buyer, ok := l.holdings[t.BuyerID]
	if !ok {
		return fmt.Errorf("%w: buyer %s", ErrUnknownAgent, t.BuyerID)
	}
	seller, ok := l.holdings[t.SellerID]
	if !ok {
		return fmt.Errorf("%w: seller %s", ErrUnknownAgent, t.SellerID)
	}

	nextBuyer, err := buyer.Apply(t.BuyerDeltas, t.BuyerMoneyDelta())
	if err != nil {
		return fmt.Errorf("buyer %s: %w", t.BuyerID, err)
	}
	nextSeller, err := seller.Apply(t.BuyerDeltas.Negate(), t.SellerMoneyDelta())
	if err != nil {
		return fmt.Errorf("seller %s: %w", t.SellerID, err)
	}

	l.holdings[t.BuyerID] = nextBuyer
	l.holdings[t.SellerID] = nextSeller

	if l.feeSink != "" && t.Fee.IsPositive() {
		sink := l.holdings[l.feeSink]
		sink.Money = sink.Money.Add(t.Fee)
		l.holdings[l.feeSink] = sink
	}

	return nil
}
