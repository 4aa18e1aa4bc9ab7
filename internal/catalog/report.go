package catalog

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
)

const moneyFormat = "0.00"

// ReportEntry is one costed recipe in a report.
type ReportEntry struct {
	Recipe model.Recipe
	Cost   model.RecipeCost
	Price  *model.PricingResult // nil when the recipe has no usable target
	Names  map[string]string    // ingredient id -> display name
}

var summaryHeader = []string{
	"Recipe ID", "Recipe", "Portions", "Total Cost", "Cost / Portion",
	"Target GP %", "Strategy", "Sell (excl tax)", "Sell (incl tax)", "Actual GP %", "Food Cost %",
	"Dropped Lines",
}

var linesHeader = []string{
	"Recipe ID", "Ingredient ID", "Ingredient", "Quantity", "Unit", "Cost / Unit",
	"Line Cost", "Waste Adjusted", "Yield Adjusted", "Consumable",
}

// BuildReport lays the entries out as a two-sheet workbook: a per-recipe
// summary and every costed line.
func BuildReport(entries []ReportEntry) (*xlsx.File, error) {
	f := xlsx.NewFile()
	summary, err := f.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "catalog: add summary sheet")
	}
	lines, err := f.AddSheet("Lines")
	if err != nil {
		return nil, eris.Wrap(err, "catalog: add lines sheet")
	}

	addStrings(summary.AddRow(), summaryHeader...)
	addStrings(lines.AddRow(), linesHeader...)

	for _, e := range entries {
		row := summary.AddRow()
		addStrings(row, e.Recipe.ID, e.Recipe.Name)
		addFloat(row, e.Cost.Portions, "0.##")
		addFloat(row, e.Cost.TotalCost, moneyFormat)
		addFloat(row, e.Cost.CostPerPortion, moneyFormat)
		if e.Price != nil {
			addFloat(row, e.Recipe.TargetGrossProfit, "0.##")
			addStrings(row, string(e.Price.Strategy))
			addFloat(row, e.Price.SellPriceExclTax, moneyFormat)
			addFloat(row, e.Price.SellPriceInclTax, moneyFormat)
			addFloat(row, e.Price.GrossProfitPercent, moneyFormat)
			addFloat(row, pricing.FoodCostPercent(e.Cost.CostPerPortion, e.Price.SellPriceExclTax), moneyFormat)
		} else {
			addStrings(row, "", "", "", "", "", "")
		}
		row.AddCell().SetInt(len(e.Cost.Dropped))

		for _, c := range e.Cost.Lines {
			lr := lines.AddRow()
			name := c.IngredientName
			if n, ok := e.Names[c.IngredientID]; ok && name == "" {
				name = n
			}
			addStrings(lr, e.Recipe.ID, c.IngredientID, name)
			addFloat(lr, c.Quantity, "0.###")
			addStrings(lr, c.Unit)
			addFloat(lr, c.CostPerUnit, "0.0000")
			addFloat(lr, c.TotalCost, moneyFormat)
			addFloat(lr, c.WasteAdjustedCost, moneyFormat)
			addFloat(lr, c.YieldAdjustedCost, moneyFormat)
			consumable := ""
			if c.IsConsumable {
				consumable = "yes"
			}
			addStrings(lr, consumable)
		}
	}
	return f, nil
}

// WriteReport builds the workbook and writes it to w.
func WriteReport(w io.Writer, entries []ReportEntry) error {
	f, err := BuildReport(entries)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "catalog: write report")
}

// SaveReport builds the workbook and saves it at path.
func SaveReport(path string, entries []ReportEntry) error {
	f, err := BuildReport(entries)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "catalog: save report %s", path)
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloat(row *xlsx.Row, v float64, format string) {
	row.AddCell().SetFloatWithFormat(v, format)
}
