package strategy

import "github.com/hupe1980/trademesh/core"

// Compile-time check
var _ Strategy = (*ScriptedStrategy)(nil)

// ScriptedStrategy adapts plain functions to the Strategy interface. Nil
// functions decline everything, so tests and demos only script the decisions
// they care about.
type ScriptedStrategy struct {
	GenerateProposalFunc func(cfp core.CFP, role core.Role, h core.Holdings, params core.UtilityParams) (*core.Proposal, error)
	EvaluateProposalFunc func(p core.Proposal, role core.Role, h core.Holdings, params core.UtilityParams) (bool, error)
}

// GenerateProposal implements Strategy.
func (s *ScriptedStrategy) GenerateProposal(cfp core.CFP, role core.Role, h core.Holdings, params core.UtilityParams) (*core.Proposal, error) {
	if s.GenerateProposalFunc == nil {
		return nil, nil
	}
	return s.GenerateProposalFunc(cfp, role, h, params)
}

// EvaluateProposal implements Strategy.
func (s *ScriptedStrategy) EvaluateProposal(p core.Proposal, role core.Role, h core.Holdings, params core.UtilityParams) (bool, error) {
	if s.EvaluateProposalFunc == nil {
		return false, nil
	}
	return s.EvaluateProposalFunc(p, role, h, params)
}
