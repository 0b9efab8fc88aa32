package game

import (
	"github.com/hupe1980/trademesh/core"
)

// Equilibrium is the competitive equilibrium implied by a setup: the
// market-clearing price per good, the real-valued allocation each agent
// would hold at those prices and the resulting per-agent scores. It is a
// theoretical benchmark for evaluation, never enforced during a run.
type Equilibrium struct {
	Prices        map[string]float64
	GoodHoldings  map[string]map[string]float64
	MoneyHoldings map[string]float64
	Scores        map[string]float64
}

// ComputeEquilibrium derives the competitive equilibrium of a setup.
//
// With shifted logarithmic utility the equilibrium has a closed form: the
// price of a good is the total utility weight on it divided by its shifted
// total supply, each agent's allocation of a good is its weight over the
// price minus the shift, and money adjusts by the market value of the
// initial endowment. Allocation quantities are real numbers and may dip
// below integers; the benchmark ignores indivisibility.
func ComputeEquilibrium(s *Setup) *Equilibrium {
	n := float64(len(s.AgentIDs))

	prices := make(map[string]float64, len(s.GoodKeys))
	for _, good := range s.GoodKeys {
		endowSum := 0.0
		paramSum := 0.0
		for _, agentID := range s.AgentIDs {
			endowSum += float64(s.Holdings[agentID].Goods.Quantity(good))
			paramSum += s.Params[agentID][good]
		}
		prices[good] = paramSum / (core.QuantityShift*n + endowSum)
	}

	goodHoldings := make(map[string]map[string]float64, len(s.AgentIDs))
	moneyHoldings := make(map[string]float64, len(s.AgentIDs))
	scores := make(map[string]float64, len(s.AgentIDs))

	for _, agentID := range s.AgentIDs {
		allocation := make(map[string]float64, len(s.GoodKeys))
		endowmentValue := 0.0
		for _, good := range s.GoodKeys {
			allocation[good] = s.Params[agentID][good]/prices[good] - core.QuantityShift
			endowmentValue += prices[good] * (float64(s.Holdings[agentID].Goods.Quantity(good)) + core.QuantityShift)
		}
		goodHoldings[agentID] = allocation
		moneyHoldings[agentID] = endowmentValue + float64(s.MoneyEndowment) - s.ScalingFactor
		scores[agentID] = core.LogarithmicUtilityFloat(s.Params[agentID], allocation) + moneyHoldings[agentID]
	}

	return &Equilibrium{
		Prices:        prices,
		GoodHoldings:  goodHoldings,
		MoneyHoldings: moneyHoldings,
		Scores:        scores,
	}
}
