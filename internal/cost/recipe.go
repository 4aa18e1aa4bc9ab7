package cost

import (
	"slices"

	"github.com/sells-group/costing-cli/internal/model"
)

// ComputeRecipe costs every line of a recipe. Lines that reference an
// ingredient missing from the catalog are dropped and their ids listed in
// RecipeCost.Dropped.
func (c *Calculator) ComputeRecipe(recipeID string, lines []model.LineItem, catalog model.Catalog, portions float64) model.RecipeCost {
	rc := model.RecipeCost{
		RecipeID: recipeID,
		Lines:    make([]model.CostCalculation, 0, len(lines)),
		Portions: normalizePortions(portions),
	}
	for _, li := range lines {
		ing, ok := catalog[li.IngredientID]
		if !ok {
			rc.Dropped = append(rc.Dropped, li.IngredientID)
			continue
		}
		rc.Lines = append(rc.Lines, c.ComputeCost(recipeID, ing, li.Quantity, li.Unit))
	}
	rc.TotalCost = Total(rc.Lines)
	rc.CostPerPortion = PerPortion(rc.TotalCost, rc.Portions)
	return rc
}

// Summarize rebuilds the recipe totals for an already computed set of lines.
func Summarize(recipeID string, calcs []model.CostCalculation, portions float64) model.RecipeCost {
	total := Total(calcs)
	p := normalizePortions(portions)
	return model.RecipeCost{
		RecipeID:       recipeID,
		Lines:          slices.Clone(calcs),
		TotalCost:      total,
		Portions:       p,
		CostPerPortion: PerPortion(total, p),
	}
}

// Total sums the yield adjusted cost of every line.
func Total(calcs []model.CostCalculation) float64 {
	var sum float64
	for _, c := range calcs {
		sum += c.YieldAdjustedCost
	}
	return sum
}

// PerPortion divides a recipe total by its portion count.
func PerPortion(total, portions float64) float64 {
	return total / normalizePortions(portions)
}

func normalizePortions(p float64) float64 {
	if p <= 0 {
		return 1
	}
	return p
}

// AddLine returns calcs with calc appended.
func AddLine(calcs []model.CostCalculation, calc model.CostCalculation) []model.CostCalculation {
	out := make([]model.CostCalculation, 0, len(calcs)+1)
	out = append(out, calcs...)
	return append(out, calc)
}

// UpdateLine returns a copy of calcs with the line at index repriced for a
// new quantity. An out of range index returns an unchanged copy and false.
func UpdateLine(calcs []model.CostCalculation, index int, quantity float64) ([]model.CostCalculation, bool) {
	out := slices.Clone(calcs)
	if index < 0 || index >= len(out) {
		return out, false
	}
	out[index] = RecomputeLine(out[index], quantity)
	return out, true
}

// RemoveLine returns a copy of calcs without the line at index.
func RemoveLine(calcs []model.CostCalculation, index int) ([]model.CostCalculation, bool) {
	if index < 0 || index >= len(calcs) {
		return slices.Clone(calcs), false
	}
	out := make([]model.CostCalculation, 0, len(calcs)-1)
	out = append(out, calcs[:index]...)
	return append(out, calcs[index+1:]...), true
}

// LineItems projects calculations back to the persisted line items, keeping
// their order.
func LineItems(calcs []model.CostCalculation) []model.LineItem {
	items := make([]model.LineItem, len(calcs))
	for i, c := range calcs {
		items[i] = model.LineItem{
			IngredientID: c.IngredientID,
			Quantity:     c.Quantity,
			Unit:         c.Unit,
		}
	}
	return items
}
