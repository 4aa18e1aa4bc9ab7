package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/units"
)

// RecipeFile is a self-contained recipe on disk. Ingredients listed inline
// take precedence over the store catalog when the file is costed.
//
//	name: Burger
//	portions: 4
//	target_gross_profit: 70
//	strategy: charm
//	lines:
//	  - {ingredient_id: beef, quantity: 500, unit: g}
//	ingredients:
//	  - {id: beef, name: Beef mince, unit: kg, cost_per_unit: 12.5, waste_percent: 5}
type RecipeFile struct {
	model.Recipe `yaml:",inline"`
	Lines        []model.LineItem   `yaml:"lines"`
	Ingredients  []model.Ingredient `yaml:"ingredients,omitempty"`
}

// LoadRecipeFile reads and validates a YAML recipe file.
func LoadRecipeFile(path string) (*RecipeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read recipe file")
	}
	return ParseRecipeFile(data)
}

// ParseRecipeFile decodes a recipe document. Missing portions default to 1
// and a missing id to the unsaved placeholder.
func ParseRecipeFile(data []byte) (*RecipeFile, error) {
	var rf RecipeFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "catalog: parse recipe file")
	}
	if rf.ID == "" {
		rf.ID = model.UnsavedRecipeID
	}
	if rf.Portions <= 0 {
		rf.Portions = 1
	}
	for i := range rf.Lines {
		rf.Lines[i].Unit = units.Normalize(rf.Lines[i].Unit)
		if err := cost.ValidateLine(rf.Lines[i]); err != nil {
			return nil, eris.Wrapf(err, "catalog: line %d", i+1)
		}
	}
	for i := range rf.Ingredients {
		ing := &rf.Ingredients[i]
		if ing.ID == "" {
			return nil, eris.Errorf("catalog: ingredient %d has no id", i+1)
		}
		ing.Unit = units.Normalize(ing.Unit)
		if ing.Category == "" {
			ing.Category = model.CategoryNormal
		}
	}
	return &rf, nil
}

// Catalog merges the file's inline ingredients over base.
func (rf *RecipeFile) Catalog(base []model.Ingredient) model.Catalog {
	merged := make([]model.Ingredient, 0, len(base)+len(rf.Ingredients))
	merged = append(merged, base...)
	merged = append(merged, rf.Ingredients...)
	return model.NewCatalog(merged)
}
