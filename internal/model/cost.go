package model

import "time"

// CostCalculation is the derived cost of one line item. It is a display
// projection and is never persisted.
type CostCalculation struct {
	RecipeID          string  `json:"recipe_id"`
	IngredientID      string  `json:"ingredient_id"`
	IngredientName    string  `json:"ingredient_name"`
	Quantity          float64 `json:"quantity"`
	Unit              string  `json:"unit"`
	CostPerUnit       float64 `json:"cost_per_unit"` // in Unit
	TotalCost         float64 `json:"total_cost"`
	WasteAdjustedCost float64 `json:"waste_adjusted_cost"`
	YieldAdjustedCost float64 `json:"yield_adjusted_cost"`
	IsConsumable      bool    `json:"is_consumable"`
	WastePercent      float64 `json:"waste_percent"`
	YieldPercent      float64 `json:"yield_percent"`
}

// RecipeCost is the costed view of a whole recipe.
type RecipeCost struct {
	RecipeID       string            `json:"recipe_id"`
	Lines          []CostCalculation `json:"lines"`
	TotalCost      float64           `json:"total_cost"`
	Portions       float64           `json:"portions"`
	CostPerPortion float64           `json:"cost_per_portion"`
	Dropped        []string          `json:"dropped,omitempty"`
}

// PricingResult is a sell price recommendation for one portion.
type PricingResult struct {
	Strategy                  Strategy `json:"strategy"`
	FoodCost                  float64  `json:"food_cost"`
	SellPriceExclTax          float64  `json:"sell_price_excl_tax"`
	SellPriceInclTax          float64  `json:"sell_price_incl_tax"`
	TaxAmount                 float64  `json:"tax_amount"`
	GrossProfitPercent        float64  `json:"gross_profit_percent"`
	GrossProfitDollar         float64  `json:"gross_profit_dollar"`
	ContributingMargin        float64  `json:"contributing_margin"`
	ContributingMarginPercent float64  `json:"contributing_margin_percent"`
}

// Collection names a tracked, locally editable collection.
type Collection string

const (
	CollectionIngredients Collection = "ingredients"
	CollectionPortions    Collection = "portions"
)

// DirtyFlag records whether a collection has unsaved manual edits.
type DirtyFlag struct {
	HasManualChange bool      `json:"has_manual_change"`
	LastChangeAt    time.Time `json:"last_change_at"`
}

// AutosaveStatus is the state of an autosave engine.
type AutosaveStatus string

const (
	AutosaveIdle   AutosaveStatus = "idle"
	AutosaveSaving AutosaveStatus = "saving"
	AutosaveSaved  AutosaveStatus = "saved"
	AutosaveError  AutosaveStatus = "error"
)

// AutosaveState is a point-in-time copy of an autosave engine's state.
type AutosaveState struct {
	Status       AutosaveStatus `json:"status"`
	LastError    string         `json:"last_error,omitempty"`
	LastSnapshot string         `json:"-"`
}
