// Package cost turns ingredient prices and recipe line items into line and
// recipe costs. Every function here is pure: inputs are never mutated and
// collections are returned as new slices.
package cost

import (
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/units"
)

// Calculator computes line costs with a fixed unit converter.
type Calculator struct {
	conv units.Converter
}

// NewCalculator creates a Calculator. A nil converter uses units.Table.
func NewCalculator(conv units.Converter) *Calculator {
	if conv == nil {
		conv = units.Table{}
	}
	return &Calculator{conv: conv}
}

// ComputeCost costs a single line item against its ingredient.
func (c *Calculator) ComputeCost(recipeID string, ing model.Ingredient, quantity float64, unit string) model.CostCalculation {
	base := 0.0
	switch {
	case ing.CostPerUnitInclTrim != nil:
		base = *ing.CostPerUnitInclTrim
	case ing.CostPerUnit != nil:
		base = *ing.CostPerUnit
	}

	if quantity < 0 {
		quantity = 0
	}

	calc := model.CostCalculation{
		RecipeID:       recipeID,
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		Quantity:       quantity,
		Unit:           unit,
		CostPerUnit:    c.conv.Convert(base, ing.Unit, unit, quantity),
		IsConsumable:   ing.IsConsumable(),
		WastePercent:   0,
		YieldPercent:   100,
	}
	if !calc.IsConsumable {
		if ing.WastePercent != nil {
			calc.WastePercent = *ing.WastePercent
		}
		if ing.YieldPercent != nil {
			calc.YieldPercent = *ing.YieldPercent
		}
	}

	return applyLoss(calc)
}

// RecomputeLine reprices an existing calculation for a new quantity. The
// already converted CostPerUnit is reused.
func RecomputeLine(calc model.CostCalculation, quantity float64) model.CostCalculation {
	if quantity < 0 {
		quantity = 0
	}
	calc.Quantity = quantity
	return applyLoss(calc)
}

// applyLoss sets TotalCost and the waste/yield adjusted costs. It is the only
// place the loss formula lives, so bulk loads, single adds, edits and reloads
// produce identical values.
//
//	waste = total * (1 + waste%/100)
//	yield = waste / (yield%/100)
//
// Consumables carry no loss. A yield of 0 or less is treated as 100.
func applyLoss(calc model.CostCalculation) model.CostCalculation {
	calc.TotalCost = calc.Quantity * calc.CostPerUnit

	if calc.IsConsumable {
		calc.WasteAdjustedCost = calc.TotalCost
		calc.YieldAdjustedCost = calc.TotalCost
		return calc
	}

	yieldPct := calc.YieldPercent
	if yieldPct <= 0 {
		yieldPct = 100
	}

	calc.WasteAdjustedCost = calc.TotalCost * (1 + calc.WastePercent/100)
	calc.YieldAdjustedCost = calc.WasteAdjustedCost / (yieldPct / 100)
	return calc
}
