package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/game"
)

// SetupBuilder helps construct game setups with fluent chaining for tests.
// Example:
//
//	setup := NewSetupBuilder().
//		Goods("good1", "good2").
//		Agent("alice", core.Basket{"good1": 2}, 100, core.UtilityParams{"good1": 20, "good2": 80}).
//		Build()
//
// Chain only the parts you need; money endowment and scaling factor default
// to 100, so preference weights that sum to 100 per agent keep the
// equilibrium benchmark well-defined.
type SetupBuilder struct {
	agentIDs       []string
	goodKeys       []string
	holdings       map[string]core.Holdings
	params         map[string]core.UtilityParams
	fee            decimal.Decimal
	moneyEndowment int
	scalingFactor  float64
}

// NewSetupBuilder creates a builder with money endowment and scaling factor 100.
func NewSetupBuilder() *SetupBuilder {
	return &SetupBuilder{
		holdings:       map[string]core.Holdings{},
		params:         map[string]core.UtilityParams{},
		fee:            decimal.Zero,
		moneyEndowment: 100,
		scalingFactor:  100,
	}
}

// Goods sets the tradable good keys (chainable).
func (b *SetupBuilder) Goods(keys ...string) *SetupBuilder {
	b.goodKeys = keys
	return b
}

// Agent adds a participant with its starting goods, money and preference
// weights (chainable).
func (b *SetupBuilder) Agent(id string, goods core.Basket, money int64, params core.UtilityParams) *SetupBuilder {
	b.agentIDs = append(b.agentIDs, id)
	b.holdings[id] = core.Holdings{Goods: goods, Money: decimal.NewFromInt(money)}
	b.params[id] = params
	return b
}

// Fee sets the per-transaction fee charged to the buyer (chainable).
func (b *SetupBuilder) Fee(units int64) *SetupBuilder {
	b.fee = decimal.NewFromInt(units)
	return b
}

// MoneyEndowment overrides the nominal money endowment used in scoring (chainable).
func (b *SetupBuilder) MoneyEndowment(m int) *SetupBuilder {
	b.moneyEndowment = m
	return b
}

// ScalingFactor overrides the scale preference weights are normalized to (chainable).
func (b *SetupBuilder) ScalingFactor(s float64) *SetupBuilder {
	b.scalingFactor = s
	return b
}

// Build returns the assembled setup.
func (b *SetupBuilder) Build() *game.Setup {
	return &game.Setup{
		AgentIDs:       b.agentIDs,
		GoodKeys:       b.goodKeys,
		Holdings:       b.holdings,
		Params:         b.params,
		Fee:            b.fee,
		MoneyEndowment: b.moneyEndowment,
		ScalingFactor:  b.scalingFactor,
	}
}
