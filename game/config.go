package game

import (
	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/internal/util"
)

// Configuration declares the shape of a competition before any randomness is
// drawn. Validate before use; Generate validates for you.
type Configuration struct {
	// AgentIDs are the unique participant identities.
	AgentIDs []string

	// GoodKeys are the unique tradable good identities.
	GoodKeys []string

	// MoneyEndowment is the money every agent starts with.
	MoneyEndowment int

	// BaseAmount is the guaranteed number of units of every good each agent
	// starts with; randomly assigned extras come on top.
	BaseAmount int

	// LowerBoundFactor and UpperBoundFactor bound the uniform draw of the
	// total instance count per good: the draw runs over
	// [BaseAmount*n + n*Lower, BaseAmount*n + n*Upper] for n agents.
	LowerBoundFactor int
	UpperBoundFactor int

	// Fee is charged to the buyer per settled transaction.
	Fee decimal.Decimal

	// Seed drives every random draw; equal configurations generate equal
	// setups.
	Seed int64
}

// DefaultConfiguration returns the classic competition parameters for the
// given agents and goods: 200 money, two guaranteed units of each good, no
// extra spread, no fee.
func DefaultConfiguration(agentIDs, goodKeys []string) Configuration {
	return Configuration{
		AgentIDs:         agentIDs,
		GoodKeys:         goodKeys,
		MoneyEndowment:   200,
		BaseAmount:       2,
		LowerBoundFactor: 0,
		UpperBoundFactor: 0,
		Fee:              decimal.Zero,
		Seed:             42,
	}
}

// NbAgents returns the number of participants.
func (c Configuration) NbAgents() int { return len(c.AgentIDs) }

// NbGoods returns the number of tradable goods.
func (c Configuration) NbGoods() int { return len(c.GoodKeys) }

// Validate checks the consistency of the configuration.
func (c Configuration) Validate() error {
	if len(c.AgentIDs) < 2 {
		return &util.ValidationError{Field: "AgentIDs", Value: len(c.AgentIDs), Message: "a competition needs at least two agents"}
	}
	if err := uniqueNonEmpty("AgentIDs", c.AgentIDs); err != nil {
		return err
	}
	if len(c.GoodKeys) == 0 {
		return &util.ValidationError{Field: "GoodKeys", Value: len(c.GoodKeys), Message: "a competition needs at least one good"}
	}
	if err := uniqueNonEmpty("GoodKeys", c.GoodKeys); err != nil {
		return err
	}
	if c.MoneyEndowment < 0 {
		return &util.ValidationError{Field: "MoneyEndowment", Value: c.MoneyEndowment, Message: "money endowment must be non-negative"}
	}
	if c.BaseAmount < 1 {
		return &util.ValidationError{Field: "BaseAmount", Value: c.BaseAmount, Message: "every agent must start with at least one unit of each good"}
	}
	if c.LowerBoundFactor < 0 {
		return &util.ValidationError{Field: "LowerBoundFactor", Value: c.LowerBoundFactor, Message: "bound factors must be non-negative"}
	}
	if c.UpperBoundFactor < c.LowerBoundFactor {
		return &util.ValidationError{Field: "UpperBoundFactor", Value: c.UpperBoundFactor, Message: "upper bound factor must not be below the lower bound factor"}
	}
	if c.Fee.IsNegative() {
		return &util.ValidationError{Field: "Fee", Value: c.Fee.String(), Message: "fee must be non-negative"}
	}
	return nil
}

func uniqueNonEmpty(field string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			return &util.ValidationError{Field: field, Value: v, Message: "identifiers must not be empty"}
		}
		if _, dup := seen[v]; dup {
			return &util.ValidationError{Field: field, Value: v, Message: "identifiers must be unique"}
		}
		seen[v] = struct{}{}
	}
	return nil
}
