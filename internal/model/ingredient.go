package model

import "time"

// Category classifies an ingredient for costing purposes.
type Category string

const (
	CategoryNormal     Category = "normal"
	CategoryConsumable Category = "consumable" // packaging, napkins; no waste/yield loss
)

// Ingredient is a catalog entry with its purchase price and loss factors.
// Optional fields are nil when the catalog has no value for them.
type Ingredient struct {
	ID                  string    `json:"id" yaml:"id"`
	Name                string    `json:"name" yaml:"name"`
	Unit                string    `json:"unit" yaml:"unit"`
	CostPerUnit         *float64  `json:"cost_per_unit,omitempty" yaml:"cost_per_unit,omitempty"`
	CostPerUnitInclTrim *float64  `json:"cost_per_unit_incl_trim,omitempty" yaml:"cost_per_unit_incl_trim,omitempty"`
	WastePercent        *float64  `json:"waste_percent,omitempty" yaml:"waste_percent,omitempty"`
	YieldPercent        *float64  `json:"yield_percent,omitempty" yaml:"yield_percent,omitempty"`
	Category            Category  `json:"category,omitempty" yaml:"category,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// IsConsumable reports whether waste and yield adjustments are skipped.
func (i Ingredient) IsConsumable() bool {
	return i.Category == CategoryConsumable
}

// Catalog indexes ingredients by ID.
type Catalog map[string]Ingredient

// NewCatalog builds a Catalog from a slice. Later duplicates win.
func NewCatalog(ingredients []Ingredient) Catalog {
	c := make(Catalog, len(ingredients))
	for _, ing := range ingredients {
		c[ing.ID] = ing
	}
	return c
}

// Float returns a pointer to v. Handy for literal Ingredient values.
func Float(v float64) *float64 {
	return &v
}
