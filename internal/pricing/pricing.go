// Package pricing recommends menu sell prices from a per-portion food cost.
package pricing

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costing-cli/internal/model"
)

// TaxRate is the sales tax applied on top of the exclusive sell price.
const TaxRate = 0.10

// ParseStrategy validates a rounding strategy name.
func ParseStrategy(s string) (model.Strategy, error) {
	switch st := model.Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case model.StrategyCharm, model.StrategyWhole, model.StrategyReal:
		return st, nil
	default:
		return "", eris.Errorf("pricing: unknown strategy %q (want charm, whole or real)", s)
	}
}

// ValidateTarget checks a target gross profit percentage. ComputePrice
// diverges at 100%.
func ValidateTarget(targetGP float64) error {
	if targetGP >= 100 {
		return eris.Errorf("pricing: target gross profit must be below 100%%, got %g", targetGP)
	}
	if targetGP < 0 {
		return eris.Errorf("pricing: target gross profit must not be negative, got %g", targetGP)
	}
	return nil
}

// ComputePrice returns the sell price that hits targetGP for one portion
// costing foodCost, rounded by strategy.
//
// Preconditions: targetGP < 100 (see ValidateTarget) and strategy is one of
// the three known values. Callers suppress pricing when foodCost <= 0; see
// Suggest.
func ComputePrice(foodCost, targetGP float64, strategy model.Strategy) model.PricingResult {
	sellExcl := foodCost / (1 - targetGP/100)
	tax := sellExcl * TaxRate
	incl := round(sellExcl+tax, strategy)

	finalExcl := incl / (1 + TaxRate)
	margin := finalExcl - foodCost

	var marginPct float64
	if finalExcl != 0 {
		marginPct = margin / finalExcl * 100
	}

	return model.PricingResult{
		Strategy:                  strategy,
		FoodCost:                  foodCost,
		SellPriceExclTax:          finalExcl,
		SellPriceInclTax:          incl,
		TaxAmount:                 incl - finalExcl,
		GrossProfitPercent:        marginPct,
		GrossProfitDollar:         margin,
		ContributingMargin:        margin,
		ContributingMarginPercent: marginPct,
	}
}

// Suggest wraps ComputePrice with the caller-side guards: it reports false
// when there is nothing to price or the inputs are out of range.
func Suggest(foodCost, targetGP float64, strategy model.Strategy) (model.PricingResult, bool) {
	if foodCost <= 0 || ValidateTarget(targetGP) != nil {
		return model.PricingResult{}, false
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return model.PricingResult{}, false
	}
	return ComputePrice(foodCost, targetGP, strategy), true
}

// FoodCostPercent is the share of the exclusive sell price spent on food.
func FoodCostPercent(foodCost, sellExcl float64) float64 {
	if sellExcl <= 0 {
		return 0
	}
	return foodCost / sellExcl * 100
}

// noise is the float error tolerated when a price lands on a whole dollar,
// e.g. 11.000000000000002. Real sub-cent amounts are well above it.
const noise = 1e-9

// round applies the strategy to an inclusive price.
func round(incl float64, strategy model.Strategy) float64 {
	switch strategy {
	case model.StrategyCharm:
		return math.Ceil(incl-noise) - 0.01
	case model.StrategyWhole:
		return math.Ceil(incl - noise)
	default:
		return incl
	}
}
