package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/costing-cli/internal/model"
)

// ErrNotFound is returned when a recipe or ingredient does not exist.
var ErrNotFound = eris.New("store: not found")

// RecipeFilter specifies criteria for listing recipes.
type RecipeFilter struct {
	Name   string `json:"name,omitempty"` // case-insensitive substring
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for ingredients, recipes and their
// line items.
type Store interface {
	// Ingredients. UpsertIngredients returns how many rows were inserted
	// or changed; identical rows are left untouched.
	UpsertIngredients(ctx context.Context, ings []model.Ingredient) (int, error)
	ListIngredients(ctx context.Context) ([]model.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (*model.Ingredient, error)

	// Recipes
	CreateRecipe(ctx context.Context, r model.Recipe) (*model.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, error)
	RecipeExists(ctx context.Context, id string) (bool, error)
	UpdatePortions(ctx context.Context, id string, portions float64) error
	DeleteRecipe(ctx context.Context, id string) error

	// Line items
	GetRecipeLines(ctx context.Context, id string) ([]model.LineItem, error)
	SaveLines(ctx context.Context, id string, items []model.LineItem) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareRecipe fills the defaults of a recipe about to be created.
func prepareRecipe(r model.Recipe) model.Recipe {
	if r.ID == "" || r.ID == model.UnsavedRecipeID {
		r.ID = uuid.New().String()
	}
	if r.Portions <= 0 {
		r.Portions = 1
	}
	return r
}

// prepareIngredients assigns ids to ingredients imported without one.
func prepareIngredients(ings []model.Ingredient) []model.Ingredient {
	out := make([]model.Ingredient, len(ings))
	for i, ing := range ings {
		if ing.ID == "" {
			ing.ID = uuid.New().String()
		}
		if ing.Category == "" {
			ing.Category = model.CategoryNormal
		}
		out[i] = ing
	}
	return out
}

func validatePortions(portions float64) error {
	if portions <= 0 {
		return eris.New("store: portions must be greater than zero")
	}
	return nil
}
