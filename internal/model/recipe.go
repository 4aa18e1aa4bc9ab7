package model

import "time"

// UnsavedRecipeID is the placeholder id used for a recipe that has not been
// created in the backing store yet.
const UnsavedRecipeID = "unsaved"

// Strategy is a menu price rounding convention.
type Strategy string

const (
	StrategyCharm Strategy = "charm" // $X.99
	StrategyWhole Strategy = "whole" // next whole dollar
	StrategyReal  Strategy = "real"  // unrounded
)

// Recipe is a dish or sub-recipe being costed.
type Recipe struct {
	ID                string    `json:"id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Portions          float64   `json:"portions" yaml:"portions"`
	TargetGrossProfit float64   `json:"target_gross_profit" yaml:"target_gross_profit"`
	Strategy          Strategy  `json:"strategy" yaml:"strategy"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// LineItem is one ingredient entry of a recipe as entered by the user.
// Unit may differ from the ingredient's canonical unit.
type LineItem struct {
	IngredientID string  `json:"ingredient_id" yaml:"ingredient_id"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
	Unit         string  `json:"unit" yaml:"unit"`
}
