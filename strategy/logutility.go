package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
)

// Compile-time check
var _ Strategy = (*LogUtilityStrategy)(nil)

// DefaultConfig provides sensible defaults for the log-utility baseline.
var DefaultConfig = Config{
	Margin:        0.1,
	MinPrice:      0.01,
	PriceDecimals: 2,
	KeepOneUnit:   true,
}

// Config holds the tunable pricing knobs of the baseline strategy.
type Config struct {
	// Margin is the relative markup a seller adds on top of its marginal
	// loss, and the discount a buyer demands below its marginal gain.
	Margin float64

	// MinPrice floors every generated price (the protocol requires positive
	// prices).
	MinPrice float64

	// PriceDecimals is the rounding applied to generated prices.
	PriceDecimals int32

	// KeepOneUnit, when true, never offers an agent's last unit of a good;
	// the logarithmic utility of the first unit is the steepest.
	KeepOneUnit bool
}

// Options aggregates construction settings.
type Options struct {
	Config Config
}

// LogUtilityStrategy is the baseline decision maker. It prices single-unit
// trades by the marginal logarithmic utility they add or remove: a seller
// asks its marginal loss plus a margin, a buyer bids its marginal gain minus
// a margin, and a proposal is accepted exactly when the net score change
// (utility delta plus money delta) is positive and affordable.
//
// Because competition scores are utility plus money on the same scale,
// comparing marginal utility against price directly is well-defined.
type LogUtilityStrategy struct {
	config Config
}

// NewLogUtilityStrategy constructs the baseline strategy.
func NewLogUtilityStrategy(optFns ...func(o *Options)) *LogUtilityStrategy {
	opts := Options{Config: DefaultConfig}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LogUtilityStrategy{config: opts.Config}
}

// GenerateProposal implements Strategy. It offers exactly one unit of the
// most favorable good named in the query, or declines with nil when no good
// qualifies.
func (s *LogUtilityStrategy) GenerateProposal(cfp core.CFP, role core.Role, h core.Holdings, params core.UtilityParams) (*core.Proposal, error) {
	if role == core.RoleSeller {
		return s.generateSellerProposal(cfp.Query, h, params), nil
	}
	return s.generateBuyerProposal(cfp.Query, h, params), nil
}

// EvaluateProposal implements Strategy. Accepts when the trade is affordable
// and strictly improves this agent's score.
func (s *LogUtilityStrategy) EvaluateProposal(p core.Proposal, role core.Role, h core.Holdings, params core.UtilityParams) (bool, error) {
	moneyDelta := p.Price
	if role == core.RoleBuyer {
		moneyDelta = p.Price.Neg()
	}
	if err := h.CanApply(p.GoodDeltas, moneyDelta); err != nil {
		return false, nil
	}

	money, _ := moneyDelta.Float64()
	surplus := core.MarginalUtility(params, h.Goods, p.GoodDeltas) + money

	return surplus > 0, nil
}

// generateSellerProposal gives away the unit whose loss is cheapest and asks
// that loss plus the margin.
func (s *LogUtilityStrategy) generateSellerProposal(q core.Query, h core.Holdings, params core.UtilityParams) *core.Proposal {
	minQty := 1
	if s.config.KeepOneUnit {
		minQty = 2
	}

	bestGood := ""
	bestLoss := 0.0
	for _, good := range q.Goods {
		if h.Goods.Quantity(good) < minQty {
			continue
		}
		loss := -core.MarginalUtility(params, h.Goods, core.GoodDeltas{good: -1})
		if bestGood == "" || loss < bestLoss {
			bestGood, bestLoss = good, loss
		}
	}
	if bestGood == "" {
		return nil
	}

	price := s.roundPrice(bestLoss * (1 + s.config.Margin))

	return &core.Proposal{
		GoodDeltas: core.GoodDeltas{bestGood: 1},
		Price:      price,
	}
}

// generateBuyerProposal bids for the unit with the highest gain, discounted
// by the margin, declining when the bid would be worthless or unaffordable.
func (s *LogUtilityStrategy) generateBuyerProposal(q core.Query, h core.Holdings, params core.UtilityParams) *core.Proposal {
	bestGood := ""
	bestGain := 0.0
	for _, good := range q.Goods {
		gain := core.MarginalUtility(params, h.Goods, core.GoodDeltas{good: 1})
		if gain > bestGain {
			bestGood, bestGain = good, gain
		}
	}
	if bestGood == "" {
		return nil
	}

	price := s.roundPrice(bestGain * (1 - s.config.Margin))
	if price.GreaterThan(h.Money) {
		return nil
	}

	// the proposer gives a negative quantity: it wants to receive the unit
	return &core.Proposal{
		GoodDeltas: core.GoodDeltas{bestGood: -1},
		Price:      price,
	}
}

func (s *LogUtilityStrategy) roundPrice(v float64) decimal.Decimal {
	price := decimal.NewFromFloat(v).Round(s.config.PriceDecimals)
	floor := decimal.NewFromFloat(s.config.MinPrice)
	if price.LessThan(floor) {
		return floor
	}
	return price
}
