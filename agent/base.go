package agent

import (
	"errors"
	"sync"

	"github.com/hupe1980/trademesh/core"
)

// BaseAgent bundles the shared lifecycle (Start/Stop) and identity helpers.
// Embed it in concrete agent implementations and supply a Run method to
// satisfy the core.Agent interface. All exported methods are goroutine-safe
// unless otherwise documented.
type BaseAgent struct {
	id      string     // Stable identity used for routing and settlement
	kind    string     // Agent flavor reported in run metadata
	mu      sync.Mutex // Protects concurrent access to agent state
	running bool       // Tracks whether the agent is currently active
}

// NewBaseAgent constructs a BaseAgent with the given identity and kind.
func NewBaseAgent(id, kind string) BaseAgent {
	return BaseAgent{
		id:   id,
		kind: kind,
	}
}

// ID returns the stable identity for this agent.
func (b *BaseAgent) ID() string { return b.id }

// Kind returns the agent flavor reported in run metadata.
func (b *BaseAgent) Kind() string { return b.kind }

// Running reports whether the agent is currently between Start and Stop.
func (b *BaseAgent) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start transitions the agent to running state. It is safe for concurrent
// calls but only the first successful invocation changes state; subsequent
// calls while running return an error.
func (b *BaseAgent) Start(_ *core.AgentContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("agent is already running")
	}
	b.running = true

	return nil
}

// Stop marks the agent as not running. Cancellation itself is owned by the
// runner through the agent context, so Stop only flips lifecycle state. It
// returns an error if the agent was not running.
func (b *BaseAgent) Stop(_ *core.AgentContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return errors.New("agent is not running")
	}
	b.running = false

	return nil
}
