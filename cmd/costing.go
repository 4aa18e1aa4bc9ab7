package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/editor"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
)

// costStoredRecipe loads a recipe with its lines and the catalog and costs it.
func costStoredRecipe(ctx context.Context, l editor.Loader, calc *cost.Calculator, id string) (*model.Recipe, model.RecipeCost, error) {
	r, err := l.GetRecipe(ctx, id)
	if err != nil {
		return nil, model.RecipeCost{}, eris.Wrapf(err, "load recipe %s", id)
	}
	lines, err := l.GetRecipeLines(ctx, id)
	if err != nil {
		return nil, model.RecipeCost{}, eris.Wrapf(err, "load lines of %s", id)
	}
	ings, err := l.ListIngredients(ctx)
	if err != nil {
		return nil, model.RecipeCost{}, eris.Wrap(err, "load ingredients")
	}
	return r, calc.ComputeRecipe(r.ID, lines, model.NewCatalog(ings), r.Portions), nil
}

// pricingTarget picks the recipe's own target and strategy, falling back to
// the configured defaults for whichever is unset.
func pricingTarget(r model.Recipe, defGP float64, defStrategy model.Strategy) (float64, model.Strategy) {
	gp, strategy := r.TargetGrossProfit, r.Strategy
	if gp <= 0 {
		gp = defGP
	}
	if _, err := pricing.ParseStrategy(string(strategy)); err != nil {
		strategy = defStrategy
	}
	return gp, strategy
}

// configuredStrategy is the default strategy from config. Validate has
// already rejected unknown names.
func configuredStrategy() model.Strategy {
	s, err := pricing.ParseStrategy(cfg.Pricing.Strategy)
	if err != nil {
		return model.StrategyCharm
	}
	return s
}
