package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/costing-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const catalogCSV = `id,name,unit,cost,waste
flour,Flour,kg,$1.20,5
,,kg,1,
oil,Oil,l,abc,
`

func TestImportCatalog(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)
	ctx := context.Background()
	path := writeFile(t, "catalog.csv", catalogCSV)

	var out bytes.Buffer
	require.NoError(t, importCatalog(ctx, st, &out, path, "", false))

	assert.Contains(t, out.String(), "row 3 skipped: missing name")
	assert.Contains(t, out.String(), "row 4 skipped: cost")
	assert.Contains(t, out.String(), "1 ingredients added or changed, 2 rows skipped")

	flour, err := st.GetIngredient(ctx, "flour")
	require.NoError(t, err)
	assert.Equal(t, "Flour", flour.Name)
	require.NotNil(t, flour.CostPerUnit)
	assert.InDelta(t, 1.2, *flour.CostPerUnit, 1e-9)
	require.NotNil(t, flour.WastePercent)
	assert.InDelta(t, 5.0, *flour.WastePercent, 1e-9)
}

func TestImportCatalog_DryRun(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)
	ctx := context.Background()
	path := writeFile(t, "catalog.csv", catalogCSV)

	var out bytes.Buffer
	require.NoError(t, importCatalog(ctx, st, &out, path, "", true))
	assert.Contains(t, out.String(), "1 ingredients parsed (dry run)")

	_, err := st.GetIngredient(ctx, "flour")
	assert.Error(t, err)
}

func TestImportCatalog_BadFile(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	err := importCatalog(context.Background(), st, &bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.csv"), "", false)
	assert.Error(t, err)

	path := writeFile(t, "catalog.csv", "id,unit\nx,kg\n")
	err = importCatalog(context.Background(), st, &bytes.Buffer{}, path, "", false)
	assert.ErrorContains(t, err, "no name column")
}

func TestImportRecipeFile_Creates(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)
	ctx := context.Background()

	path := writeFile(t, "soup.yaml", `
name: Soup
portions: 4
target_gross_profit: 65
strategy: whole
lines:
  - {ingredient_id: stock, quantity: 2, unit: litre}
  - {ingredient_id: salt, quantity: 10, unit: g}
ingredients:
  - {id: stock, name: Chicken stock, unit: l, cost_per_unit: 3}
`)

	id, err := importRecipeFile(ctx, st, path)
	require.NoError(t, err)
	assert.NotEqual(t, model.UnsavedRecipeID, id)

	r, err := st.GetRecipe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Soup", r.Name)
	assert.Equal(t, 4.0, r.Portions)
	assert.Equal(t, model.StrategyWhole, r.Strategy)

	lines, err := st.GetRecipeLines(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{
		{IngredientID: "stock", Quantity: 2, Unit: "l"},
		{IngredientID: "salt", Quantity: 10, Unit: "g"},
	}, lines)

	stock, err := st.GetIngredient(ctx, "stock")
	require.NoError(t, err)
	assert.Equal(t, "Chicken stock", stock.Name)
}

func TestImportRecipeFile_UpdatesExisting(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)
	ctx := context.Background()

	path := writeFile(t, "burger.yaml", `
id: burger
name: Renamed
portions: 5
lines:
  - {ingredient_id: beef, quantity: 1, unit: kg}
`)

	id, err := importRecipeFile(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, "burger", id)

	r, err := st.GetRecipe(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, "Burger", r.Name)
	assert.Equal(t, 5.0, r.Portions)

	lines, err := st.GetRecipeLines(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{{IngredientID: "beef", Quantity: 1, Unit: "kg"}}, lines)
}

func TestImportRecipeFile_Invalid(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	path := writeFile(t, "bad.yaml", "name: Bad\nlines:\n  - {ingredient_id: beef, quantity: 0}\n")
	_, err := importRecipeFile(context.Background(), st, path)
	assert.ErrorContains(t, err, "line 1")
}
