package core

import (
	"context"

	"github.com/hupe1980/trademesh/logging"
)

// AgentContext carries execution state & helpers for one agent's
// participation in a run. It encapsulates the per-run scope passed to an
// Agent's lifecycle methods and aggregates:
//   - The ambient cancellation Context
//   - Identifiers (RunID, Agent info)
//   - The agent's inbox and the shared Router for outbound messages
//   - The Emit channel feeding the run's event stream
//   - The outbound message budget Limiter
//
// The context is created by the runner; agents treat it as read-only wiring.
type AgentContext struct {
	Context context.Context
	RunID   string
	Agent   AgentInfo
	Router  Router
	Inbox   <-chan Envelope
	Emit    chan<- Event
	Limiter *MessageLimiter

	*loggerAdapter
}

// NewAgentContext constructs an AgentContext bound to a run.
func NewAgentContext(
	ctx context.Context,
	runID string,
	agent AgentInfo,
	router Router,
	inbox <-chan Envelope,
	emit chan<- Event,
	maxMessages int,
	logger logging.Logger,
) *AgentContext {
	return &AgentContext{
		Context:       ctx,
		RunID:         runID,
		Agent:         agent,
		Router:        router,
		Inbox:         inbox,
		Emit:          emit,
		Limiter:       NewMessageLimiter(maxMessages),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (ac *AgentContext) Done() <-chan struct{} { return ac.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ac *AgentContext) Err() error { return ac.Context.Err() }

// AgentID returns the logical agent id for this run.
func (ac *AgentContext) AgentID() string { return ac.Agent.ID }

// Send counts the message against the outbound budget and routes it. The
// budget error is returned before anything is sent so a capped agent never
// half-delivers.
func (ac *AgentContext) Send(msg Message, to string) error {
	if err := ac.Limiter.Increment(); err != nil {
		return err
	}
	return ac.Router.Send(ac.Context, NewEnvelope(ac.Agent.ID, to, msg))
}

// EmitEvent pushes an event onto the run's stream, giving up when the run
// context ends first.
func (ac *AgentContext) EmitEvent(ev Event) error {
	select {
	case <-ac.Context.Done():
		return ac.Context.Err()
	case ac.Emit <- ev:
		return nil
	}
}
