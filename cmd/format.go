package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/costing-cli/internal/model"
)

// newPrinter returns a number printer for the configured locale, falling
// back to US English.
func newPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return message.NewPrinter(tag)
}

func money(p *message.Printer, v float64) string {
	return p.Sprintf("$%.2f", v)
}

func percent(p *message.Printer, v float64) string {
	return p.Sprintf("%.1f%%", v)
}

// formatRecipeCost writes a costed recipe as a table.
func formatRecipeCost(out io.Writer, p *message.Printer, r model.Recipe, rc model.RecipeCost) {
	_, _ = fmt.Fprintf(out, "%s (%s), %s portions\n\n", r.Name, r.ID, p.Sprint(rc.Portions))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "#\tINGREDIENT\tQTY\tUNIT\tCOST/UNIT\tCOST\tWASTE ADJ\tYIELD ADJ\t")
	for i, c := range rc.Lines {
		name := c.IngredientName
		if c.IsConsumable {
			name += " *"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1,
			name,
			p.Sprint(c.Quantity),
			c.Unit,
			p.Sprintf("$%.4f", c.CostPerUnit),
			money(p, c.TotalCost),
			money(p, c.WasteAdjustedCost),
			money(p, c.YieldAdjustedCost),
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTotal: %s  Per portion: %s\n", money(p, rc.TotalCost), money(p, rc.CostPerPortion))
	if len(rc.Dropped) > 0 {
		_, _ = fmt.Fprintf(out, "Skipped unknown ingredients: %s\n", strings.Join(rc.Dropped, ", "))
	}
}

// formatPricing writes a price recommendation.
func formatPricing(out io.Writer, p *message.Printer, pr model.PricingResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Strategy\t%s\n", pr.Strategy)
	_, _ = fmt.Fprintf(w, "Food cost\t%s\n", money(p, pr.FoodCost))
	_, _ = fmt.Fprintf(w, "Sell price (incl tax)\t%s\n", money(p, pr.SellPriceInclTax))
	_, _ = fmt.Fprintf(w, "Sell price (excl tax)\t%s\n", money(p, pr.SellPriceExclTax))
	_, _ = fmt.Fprintf(w, "Tax\t%s\n", money(p, pr.TaxAmount))
	_, _ = fmt.Fprintf(w, "Gross profit\t%s (%s)\n", money(p, pr.GrossProfitDollar), percent(p, pr.GrossProfitPercent))
	_ = w.Flush()
}
