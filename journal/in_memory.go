package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/trademesh/core"
)

// InMemoryJournal is an in-process core.Journal implementation. Records are
// kept in append order in a slice guarded by an RWMutex; holdings snapshots
// are stored per agent with a monotonically increasing version. All reads
// return copies.
type InMemoryJournal struct {
	mu        sync.RWMutex
	records   []core.SettlementRecord
	snapshots map[string][]core.HoldingsSnapshot
}

// NewInMemoryJournal returns an empty in-memory journal.
func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{snapshots: make(map[string][]core.HoldingsSnapshot)}
}

// Append adds a settlement record to the log. The record's delta map is
// copied before storage.
func (j *InMemoryJournal) Append(rec core.SettlementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec.GoodDeltas = rec.GoodDeltas.Clone()
	j.records = append(j.records, rec)

	return nil
}

// Export returns a copy of all records in append order.
func (j *InMemoryJournal) Export() []core.SettlementRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]core.SettlementRecord, len(j.records))
	for i, rec := range j.records {
		rec.GoodDeltas = rec.GoodDeltas.Clone()
		out[i] = rec
	}

	return out
}

// Len returns the number of appended records.
func (j *InMemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.records)
}

// SaveSnapshot stores a post-settlement holdings copy for an agent and
// returns its 1-based version.
func (j *InMemoryJournal) SaveSnapshot(agentID string, h core.Holdings) (int, error) {
	if agentID == "" {
		return 0, fmt.Errorf("agent id must not be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	version := len(j.snapshots[agentID]) + 1
	j.snapshots[agentID] = append(j.snapshots[agentID], core.HoldingsSnapshot{
		AgentID:   agentID,
		Version:   version,
		Holdings:  h.Clone(),
		Timestamp: time.Now().UTC(),
	})

	return version, nil
}

// LatestSnapshot returns the most recent holdings snapshot for an agent or
// ErrNoSnapshot.
func (j *InMemoryJournal) LatestSnapshot(agentID string) (core.HoldingsSnapshot, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snaps := j.snapshots[agentID]
	if len(snaps) == 0 {
		return core.HoldingsSnapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, agentID)
	}

	snap := snaps[len(snaps)-1]
	snap.Holdings = snap.Holdings.Clone()

	return snap, nil
}
