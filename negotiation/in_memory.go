package negotiation

import (
	"fmt"
	"sync"

	"github.com/hupe1980/trademesh/core"
)

// InMemoryStore is a volatile core.SessionStore implementation keeping an
// agent's live negotiation sessions in a process local map. It is safe for
// concurrent access. Unlike value stores it hands out the stored pointers
// directly: NegotiationSession synchronizes its own transitions, and message
// handlers must act on the one live instance.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.NegotiationSession
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.NegotiationSession)}
}

// Put stores a session under its dialogue id.
func (s *InMemoryStore) Put(sess *core.NegotiationSession) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session must have a dialogue id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess

	return nil
}

// Get retrieves a session by dialogue id or returns ErrNotFound.
func (s *InMemoryStore) Get(dialogueID string) (*core.NegotiationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[dialogueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dialogueID)
	}

	return sess, nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(dialogueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, dialogueID)

	return nil
}

// Active returns the stored sessions in unspecified order.
func (s *InMemoryStore) Active() []*core.NegotiationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.NegotiationSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}

	return out
}
