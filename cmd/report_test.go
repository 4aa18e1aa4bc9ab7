package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/costing-cli/internal/catalog"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/store"
)

func TestBuildReport(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateRecipe(ctx, model.Recipe{ID: "soup", Name: "Soup", Portions: 4})
	require.NoError(t, err)
	require.NoError(t, st.SaveLines(ctx, "soup", []model.LineItem{
		{IngredientID: "salt", Quantity: 100, Unit: "g"},
		{IngredientID: "gone", Quantity: 1, Unit: "kg"},
	}))
	_, err = st.CreateRecipe(ctx, model.Recipe{ID: "empty", Name: "Empty", Portions: 1})
	require.NoError(t, err)

	entries, err := buildReport(ctx, st, store.RecipeFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "burger", entries[0].Recipe.ID)
	assert.Equal(t, "empty", entries[1].Recipe.ID)
	assert.Equal(t, "soup", entries[2].Recipe.ID)

	require.NotNil(t, entries[0].Price)
	assert.Nil(t, entries[1].Price)

	soup := entries[2]
	assert.InDelta(t, 0.1, soup.Cost.TotalCost, 1e-9)
	assert.Equal(t, []string{"gone"}, soup.Cost.Dropped)
	require.NotNil(t, soup.Price)
	assert.Equal(t, model.StrategyCharm, soup.Price.Strategy)
	assert.Equal(t, "Salt", soup.Names["salt"])
}

func TestBuildReport_Filter(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	entries, err := buildReport(context.Background(), st, store.RecipeFilter{Name: "burg"}, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = buildReport(context.Background(), st, store.RecipeFilter{Name: "pizza"}, 4)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildReport_WritesWorkbook(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	entries, err := buildReport(context.Background(), st, store.RecipeFilter{}, 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "costs.xlsx")
	require.NoError(t, catalog.SaveReport(path, entries))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Contains(t, wb.Sheet, "Summary")
	require.Contains(t, wb.Sheet, "Lines")
	assert.Len(t, wb.Sheet["Summary"].Rows, 2)
	assert.Len(t, wb.Sheet["Lines"].Rows, 3)
}
