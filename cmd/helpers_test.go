package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/config"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/store"
)

// useTestConfig installs a default config and a no-op logger. Tests that
// call it must not run in parallel.
func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", SQLitePath: "costing-test.db"},
		Server:  config.ServerConfig{Port: 8080},
		Pricing: config.PricingConfig{TargetGrossProfit: 70, Strategy: "charm", Locale: "en-US"},
		Report:  config.ReportConfig{Concurrency: 2},
		Editor: config.EditorConfig{
			GuardWindowMs:   10000,
			DebounceMs:      2500,
			SavedDisplayMs:  2000,
			SaveTimeoutSecs: 5,
			AutosaveEnabled: true,
		},
	}
	restore := zap.ReplaceGlobals(zap.NewNop())
	t.Cleanup(func() {
		cfg = prev
		restore()
	})
}

// newTestStore opens a migrated SQLite store seeded with a small catalog and
// one recipe, "burger": 2 kg beef plus a box, 2 portions.
func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	_, err = st.UpsertIngredients(ctx, []model.Ingredient{
		{ID: "beef", Name: "Beef mince", Unit: "kg", CostPerUnit: model.Float(2), WastePercent: model.Float(10), YieldPercent: model.Float(90)},
		{ID: "box", Name: "Takeaway box", Unit: "each", CostPerUnit: model.Float(0.5), Category: model.CategoryConsumable},
		{ID: "salt", Name: "Salt", Unit: "kg", CostPerUnit: model.Float(1)},
	})
	require.NoError(t, err)

	_, err = st.CreateRecipe(ctx, model.Recipe{ID: "burger", Name: "Burger", Portions: 2, TargetGrossProfit: 70, Strategy: model.StrategyCharm})
	require.NoError(t, err)
	require.NoError(t, st.SaveLines(ctx, "burger", []model.LineItem{
		{IngredientID: "beef", Quantity: 2, Unit: "kg"},
		{IngredientID: "box", Quantity: 1, Unit: "each"},
	}))
	return st
}

func storeFilterAll() store.RecipeFilter {
	return store.RecipeFilter{}
}
