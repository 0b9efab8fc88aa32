package core

// Agent defines the interface every trading participant implements.
//
// Agents are the autonomous units of a run. They receive their wiring (inbox,
// router, event sink, message budget) through an AgentContext, negotiate over
// the router, and emit events to report progress back to the run.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Validate inbound messages and silently discard stale or malformed ones
//   - Manage their lifecycle through Start/Stop
type Agent interface {
	ID() string
	Start(actx *AgentContext) error
	Run(actx *AgentContext) error
	Stop(actx *AgentContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// ID is the external identifier; Kind categorizes the implementation
// (e.g. "participant", "controller").
type AgentInfo struct{ ID, Kind string }
