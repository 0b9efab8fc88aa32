package core

import (
	"context"
	"sync"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}

// recordingRouter captures envelopes instead of delivering them.
type recordingRouter struct {
	mu   sync.Mutex
	sent []Envelope
}

func (r *recordingRouter) Send(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return nil
}

func (r *recordingRouter) Subscribe(string) (<-chan Envelope, error) {
	ch := make(chan Envelope)
	return ch, nil
}

func (r *recordingRouter) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newAgentContextForTest(maxMessages int) (*AgentContext, *recordingRouter, chan Event) {
	emit := make(chan Event, 5)
	inbox := make(chan Envelope, 5)
	rtr := &recordingRouter{}
	actx := NewAgentContext(
		context.Background(),
		"run-x",
		AgentInfo{ID: "agent1", Kind: "participant"},
		rtr,
		inbox,
		emit,
		maxMessages,
		testLogger{},
	)
	return actx, rtr, emit
}
