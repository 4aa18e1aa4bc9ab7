package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/costing-cli/internal/model"
)

func TestMoney(t *testing.T) {
	p := newPrinter("en-US")
	assert.Equal(t, "$1,234.50", money(p, 1234.5))
	assert.Equal(t, "$0.00", money(p, 0))
	assert.Equal(t, "72.5%", percent(p, 72.5))
}

func TestNewPrinter_BadLocale(t *testing.T) {
	p := newPrinter("not a locale!")
	assert.Equal(t, "$10.00", money(p, 10))
}

func TestFormatRecipeCost(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter("en-US")
	formatRecipeCost(&buf, p, model.Recipe{ID: "r1", Name: "Tea"}, model.RecipeCost{
		Lines: []model.CostCalculation{
			{IngredientName: "Leaves", Quantity: 5, Unit: "g", TotalCost: 0.25, WasteAdjustedCost: 0.25, YieldAdjustedCost: 0.25},
			{IngredientName: "Cup", Quantity: 1, Unit: "each", TotalCost: 0.1, IsConsumable: true},
		},
		TotalCost:      0.35,
		Portions:       1,
		CostPerPortion: 0.35,
		Dropped:        []string{"milk"},
	})

	out := buf.String()
	assert.Contains(t, out, "Tea (r1), 1 portions")
	assert.Contains(t, out, "Cup *")
	assert.NotContains(t, out, "Leaves *")
	assert.Contains(t, out, "Total: $0.35  Per portion: $0.35")
	assert.Contains(t, out, "Skipped unknown ingredients: milk")
}

func TestFormatRecipes(t *testing.T) {
	var buf bytes.Buffer
	formatRecipes(&buf, []model.Recipe{
		{ID: "burger", Name: "Burger", Portions: 2, TargetGrossProfit: 70, Strategy: model.StrategyCharm},
		{ID: "soup", Name: "Soup", Portions: 4},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "TARGET GP")
	assert.Contains(t, lines[2], "70%")
	assert.Contains(t, lines[2], "charm")
	assert.Regexp(t, `soup\s+Soup\s+4\s+-\s+-`, lines[3])
}
