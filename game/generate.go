package game

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
)

// Setup is a fully drawn competition: who starts with what, and what each
// agent privately wants. Generate is the only intended constructor; tests
// may build small setups by hand.
type Setup struct {
	AgentIDs       []string
	GoodKeys       []string
	Holdings       map[string]core.Holdings
	Params         map[string]core.UtilityParams
	Fee            decimal.Decimal
	MoneyEndowment int
	ScalingFactor  float64
	Seed           int64
}

// Generate draws a competition setup from the configuration. The draw is
// deterministic: equal configurations (including Seed) produce equal setups,
// which makes competition runs reproducible.
//
// Endowments follow the base-plus-extras scheme: every agent is guaranteed
// BaseAmount units of every good, then the per-good instance total sampled
// from the bound factors is distributed one unit at a time to random agents.
// Utility parameters are drawn as positive integers, normalized to sum to
// one per agent and scaled to the order of magnitude of the money endowment
// so goods and money weigh comparably in the score.
func Generate(config Configuration) (*Setup, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	scaling := ScalingFactor(config.MoneyEndowment)

	endowments := generateEndowments(rng, config)
	params := generateParams(rng, config, scaling)

	money := decimal.NewFromInt(int64(config.MoneyEndowment))
	holdings := make(map[string]core.Holdings, len(config.AgentIDs))
	paramsByAgent := make(map[string]core.UtilityParams, len(config.AgentIDs))

	for i, agentID := range config.AgentIDs {
		basket := core.NewBasket()
		agentParams := make(core.UtilityParams, len(config.GoodKeys))
		for g, good := range config.GoodKeys {
			basket[good] = endowments[i][g]
			agentParams[good] = params[i][g]
		}
		holdings[agentID] = core.Holdings{Goods: basket, Money: money}
		paramsByAgent[agentID] = agentParams
	}

	return &Setup{
		AgentIDs:       append([]string(nil), config.AgentIDs...),
		GoodKeys:       append([]string(nil), config.GoodKeys...),
		Holdings:       holdings,
		Params:         paramsByAgent,
		Fee:            config.Fee,
		MoneyEndowment: config.MoneyEndowment,
		ScalingFactor:  scaling,
		Seed:           config.Seed,
	}, nil
}

// ScalingFactor returns ten to the power of the number of digits of the
// money endowment minus one, e.g. 100 for an endowment of 200. Utility
// parameters are multiplied by it so the goods term of the score moves on
// the same scale as the money term.
func ScalingFactor(moneyEndowment int) float64 {
	return math.Pow(10, float64(len(strconv.Itoa(moneyEndowment))-1))
}

// generateEndowments returns the endowment matrix indexed [agent][good].
func generateEndowments(rng *rand.Rand, config Configuration) [][]int {
	n := config.NbAgents()

	lower := float64(config.BaseAmount*n + n*config.LowerBoundFactor)
	upper := float64(config.BaseAmount*n + n*config.UpperBoundFactor)

	instances := make([]int, config.NbGoods())
	for g := range instances {
		instances[g] = int(math.Round(lower + rng.Float64()*(upper-lower)))
	}

	endowments := make([][]int, n)
	for i := range endowments {
		row := make([]int, config.NbGoods())
		for g := range row {
			row[g] = config.BaseAmount
		}
		endowments[i] = row
	}

	// distribute the extras one unit at a time to create asymmetry
	for g := range instances {
		for extra := instances[g] - config.BaseAmount*n; extra > 0; extra-- {
			endowments[rng.Intn(n)][g]++
		}
	}

	return endowments
}

// generateParams returns the scaled utility parameter matrix indexed
// [agent][good]. Per agent the unscaled parameters are positive and sum to
// one (up to the rounding of the last entry).
func generateParams(rng *rand.Rand, config Configuration, scaling float64) [][]float64 {
	decimals := 4
	if config.NbGoods() >= 100 {
		decimals = 8
	}

	out := make([][]float64, config.NbAgents())
	for i := range out {
		draws := make([]int, config.NbGoods())
		total := 0
		for g := range draws {
			draws[g] = rng.Intn(101) + 1
			total += draws[g]
		}

		fractions := make([]float64, len(draws))
		sum := 0.0
		for g, v := range draws {
			fractions[g] = roundTo(float64(v)/float64(total), decimals)
			sum += fractions[g]
		}
		if sum != 1.0 {
			head := 0.0
			for _, f := range fractions[:len(fractions)-1] {
				head += f
			}
			fractions[len(fractions)-1] = roundTo(1.0-head, decimals)
		}

		for g := range fractions {
			fractions[g] *= scaling
		}
		out[i] = fractions
	}

	return out
}

func roundTo(x float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}
