package core

import (
	"fmt"
	"sync"
)

// MessageLimiter enforces a maximum number of outbound messages per agent
// per run, bounding how much protocol traffic a single participant can
// generate.
type MessageLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewMessageLimiter creates a new limiter with a max number of messages.
// If max == 0, unlimited messages are allowed.
func NewMessageLimiter(max int) *MessageLimiter {
	return &MessageLimiter{max: max}
}

// Increment increases the message counter and returns an error if the limit
// is exceeded.
func (ml *MessageLimiter) Increment() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("exceeded max outbound messages: %d", ml.max)
	}

	return nil
}

// Count returns the current number of messages sent.
func (ml *MessageLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many messages are left before hitting the limit.
func (ml *MessageLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1 // unlimited
	}

	return ml.max - ml.count
}
