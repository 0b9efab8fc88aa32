package core

import "math"

// QuantityShift is added to every quantity before taking the logarithm so
// that owning zero units of a good yields zero utility instead of -Inf.
const QuantityShift = 1

// guardUtility replaces a non-finite utility (all params zero against an
// empty basket) with a large penalty so comparisons still order sensibly.
const guardUtility = -10000.0

// UtilityParams maps good keys to the agent's private utility weights. The
// weights are strictly positive and, before scaling, sum to one.
type UtilityParams map[string]float64

// Clone returns an independent copy of the parameter map.
func (p UtilityParams) Clone() UtilityParams {
	cp := make(UtilityParams, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// LogarithmicUtility computes the shifted Cobb-Douglas style utility of a
// goods basket: sum over goods of param * ln(quantity + QuantityShift).
// Goods without a parameter contribute nothing.
func LogarithmicUtility(params UtilityParams, goods Basket) float64 {
	u := 0.0
	for good, weight := range params {
		u += weight * math.Log(float64(goods.Quantity(good)+QuantityShift))
	}
	if math.IsNaN(u) || math.IsInf(u, 0) {
		return guardUtility
	}
	return u
}

// LogarithmicUtilityFloat is LogarithmicUtility over fractional quantities.
// Equilibrium allocations are real-valued, so the benchmark math needs it.
func LogarithmicUtilityFloat(params UtilityParams, quantities map[string]float64) float64 {
	u := 0.0
	for good, weight := range params {
		u += weight * math.Log(quantities[good]+QuantityShift)
	}
	if math.IsNaN(u) || math.IsInf(u, 0) {
		return guardUtility
	}
	return u
}

// MarginalUtility returns the utility gained (or lost, when negative) by
// applying the given good deltas to the current basket.
func MarginalUtility(params UtilityParams, goods Basket, deltas GoodDeltas) float64 {
	next := goods.Clone()
	for good, delta := range deltas {
		next[good] += delta
	}
	return LogarithmicUtility(params, next) - LogarithmicUtility(params, goods)
}

// Score is the competition score of a holdings state: the logarithmic
// utility of the goods plus the money balance.
func Score(params UtilityParams, h Holdings) float64 {
	money, _ := h.Money.Float64()
	return LogarithmicUtility(params, h.Goods) + money
}
