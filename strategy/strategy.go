package strategy

import "github.com/hupe1980/trademesh/core"

// Strategy decides how an agent negotiates. Implementations must be safe
// for concurrent use; the participant may drive several dialogues at once.
//
// Both methods receive the agent's available holdings (current holdings
// minus goods and money already promised in other live negotiations) and
// its private utility parameters.
type Strategy interface {
	// GenerateProposal answers a received CFP. role is the side this agent
	// would take in the trade. Returning a nil proposal declines silently;
	// the caller fills in the proposal's identity fields (ID, CFPID,
	// DialogueID, Sender).
	GenerateProposal(cfp core.CFP, role core.Role, h core.Holdings, params core.UtilityParams) (*core.Proposal, error)

	// EvaluateProposal decides whether to accept a received proposal. role
	// is the side this agent takes. Good deltas in the proposal are already
	// from this agent's receive-perspective (the proposer gives what this
	// agent gets).
	EvaluateProposal(p core.Proposal, role core.Role, h core.Holdings, params core.UtilityParams) (bool, error)
}
