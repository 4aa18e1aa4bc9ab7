package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/costing-cli/internal/model"
)

func runScript(t *testing.T, b backend, recipeID, script string) string {
	t.Helper()
	ctx := context.Background()

	sess := newEditorSession(ctx, b, cfg.Editor)
	t.Cleanup(sess.Close)
	require.NoError(t, sess.Open(ctx, recipeID))

	var out bytes.Buffer
	r := &repl{
		sess:        sess,
		out:         &out,
		p:           newPrinter("en-US"),
		defGP:       70,
		defStrategy: model.StrategyCharm,
	}
	require.NoError(t, r.run(ctx, strings.NewReader(script)))
	return out.String()
}

func TestREPL_EditsAreSavedOnQuit(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "add salt 100 g\nqty 1 1\nshow\nquit\n")
	assert.Contains(t, out, "added Salt")
	assert.Contains(t, out, "line 1:")
	assert.Contains(t, out, "Burger (burger)")
	assert.NotContains(t, out, "error:")

	lines, err := st.GetRecipeLines(context.Background(), "burger")
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{
		{IngredientID: "beef", Quantity: 1, Unit: "kg"},
		{IngredientID: "box", Quantity: 1, Unit: "each"},
		{IngredientID: "salt", Quantity: 100, Unit: "g"},
	}, lines)
}

func TestREPL_RemoveSavesImmediately(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "rm 2\n")
	assert.Contains(t, out, "removed line 2")

	lines, err := st.GetRecipeLines(context.Background(), "burger")
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{{IngredientID: "beef", Quantity: 2, Unit: "kg"}}, lines)
}

func TestREPL_Portions(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "portions 4\nstatus\n")
	assert.Contains(t, out, "portions: edited")
	assert.Contains(t, out, "ingredients: clean")

	r, err := st.GetRecipe(context.Background(), "burger")
	require.NoError(t, err)
	assert.Equal(t, 4.0, r.Portions)
}

func TestREPL_Price(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "price 70 whole\nprice 100\nprice 60 round\n")
	assert.Contains(t, out, "Strategy")
	assert.Contains(t, out, "whole")
	assert.Contains(t, out, "must be below 100%")
	assert.Contains(t, out, "unknown strategy")
}

func TestREPL_ErrorsDoNotStopTheLoop(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", strings.Join([]string{
		"bogus",
		"add",
		"add ghost 1",
		"add salt zero",
		"add salt -1",
		"qty 9 1",
		"rm x",
		"portions 0",
		"help",
	}, "\n"))

	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "usage: add")
	assert.Contains(t, out, "invalid quantity")
	assert.Contains(t, out, "invalid line number")
	assert.Contains(t, out, "commands:")
	assert.GreaterOrEqual(t, strings.Count(out, "error:"), 7)
}

func TestREPL_AddWarnsOnUnrelatedUnit(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "add salt 2 each\nadd salt 100 g\nquit\n")
	assert.Equal(t, 1, strings.Count(out, "note:"))
	assert.Contains(t, out, "each does not convert to kg")
}

func TestREPL_ScratchRecipeIsNeverSaved(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, model.UnsavedRecipeID, "add beef 1\nsave\nshow\n")
	assert.Contains(t, out, "added Beef mince")
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "Untitled")

	recipes, err := st.ListRecipes(context.Background(), storeFilterAll())
	require.NoError(t, err)
	assert.Len(t, recipes, 1)
}

func TestREPL_IngredientsAndOpen(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, model.UnsavedRecipeID, "ingredients bee\nopen burger\n")
	assert.Contains(t, out, "Beef mince")
	assert.NotContains(t, out, "Salt")
	assert.Contains(t, out, "Burger (burger)")
}

func TestREPL_Reload(t *testing.T) {
	useTestConfig(t)
	st := newTestStore(t)

	out := runScript(t, st, "burger", "reload\nadd salt 1\nreload\n")
	assert.Contains(t, out, "lines: reloaded, portions: reloaded")
	assert.Contains(t, out, "lines: kept local edits, portions: reloaded")
}
