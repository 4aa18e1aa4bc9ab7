package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/costing-cli/internal/catalog"
	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/editor"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
)

var (
	costRecipeID string
	costFile     string
	costJSON     bool
)

// costOutput is the --json shape of the cost command.
type costOutput struct {
	Recipe model.Recipe         `json:"recipe"`
	Cost   model.RecipeCost     `json:"cost"`
	Price  *model.PricingResult `json:"price,omitempty"`
}

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Cost a stored recipe or a recipe file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if (costRecipeID == "") == (costFile == "") {
			return eris.New("exactly one of --recipe or --file is required")
		}

		var (
			res *costOutput
			err error
		)
		if costFile != "" {
			res, err = costFromFile(ctx, costFile, func() (editor.Loader, func(), error) {
				return initBackend(ctx)
			})
		} else {
			b, closeFn, berr := initBackend(ctx)
			if berr != nil {
				return berr
			}
			defer closeFn()
			res, err = costFromStore(ctx, b, costRecipeID)
		}
		if err != nil {
			return err
		}
		return writeCost(os.Stdout, res, costJSON)
	},
}

func costFromStore(ctx context.Context, l editor.Loader, id string) (*costOutput, error) {
	r, rc, err := costStoredRecipe(ctx, l, cost.NewCalculator(nil), id)
	if err != nil {
		return nil, err
	}
	return withPrice(*r, rc), nil
}

// costFromFile costs a YAML recipe. The backend is opened only when the
// file references ingredients it does not define inline.
func costFromFile(ctx context.Context, path string, open func() (editor.Loader, func(), error)) (*costOutput, error) {
	rf, err := catalog.LoadRecipeFile(path)
	if err != nil {
		return nil, err
	}

	cat := rf.Catalog(nil)
	if missingIngredients(rf.Lines, cat) {
		l, closeFn, err := open()
		if err != nil {
			return nil, eris.Wrap(err, "recipe file references ingredients not defined inline")
		}
		defer closeFn()
		base, err := l.ListIngredients(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load ingredients")
		}
		cat = rf.Catalog(base)
	}

	rc := cost.NewCalculator(nil).ComputeRecipe(rf.ID, rf.Lines, cat, rf.Portions)
	return withPrice(rf.Recipe, rc), nil
}

func missingIngredients(lines []model.LineItem, cat model.Catalog) bool {
	for _, li := range lines {
		if _, ok := cat[li.IngredientID]; !ok {
			return true
		}
	}
	return false
}

func withPrice(r model.Recipe, rc model.RecipeCost) *costOutput {
	out := &costOutput{Recipe: r, Cost: rc}
	gp, strategy := pricingTarget(r, cfg.Pricing.TargetGrossProfit, configuredStrategy())
	if pr, ok := pricing.Suggest(rc.CostPerPortion, gp, strategy); ok {
		out.Price = &pr
	}
	return out
}

func writeCost(w io.Writer, res *costOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "encode cost")
	}
	p := newPrinter(cfg.Pricing.Locale)
	formatRecipeCost(w, p, res.Recipe, res.Cost)
	if res.Price != nil {
		_, _ = io.WriteString(w, "\n")
		formatPricing(w, p, *res.Price)
	}
	return nil
}

func init() {
	costCmd.Flags().StringVar(&costRecipeID, "recipe", "", "stored recipe id")
	costCmd.Flags().StringVar(&costFile, "file", "", "recipe file (.yaml)")
	costCmd.Flags().BoolVar(&costJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(costCmd)
}
