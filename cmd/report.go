package main

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/costing-cli/internal/catalog"
	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
	"github.com/sells-group/costing-cli/internal/store"
)

var (
	reportOut  string
	reportName string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Cost every recipe and write an XLSX report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := buildReport(ctx, st, store.RecipeFilter{Name: reportName}, cfg.Report.Concurrency)
		if err != nil {
			return err
		}
		if err := catalog.SaveReport(reportOut, entries); err != nil {
			return err
		}
		zap.L().Info("report written",
			zap.String("path", reportOut),
			zap.Int("recipes", len(entries)),
		)
		return nil
	},
}

// buildReport costs the matching recipes concurrently against one catalog
// snapshot. Entries keep the store's recipe order. A recipe whose lines fail
// to load is logged and left out.
func buildReport(ctx context.Context, st store.Store, filter store.RecipeFilter, concurrency int) ([]catalog.ReportEntry, error) {
	recipes, err := st.ListRecipes(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "report: list recipes")
	}
	ings, err := st.ListIngredients(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: list ingredients")
	}
	cat := model.NewCatalog(ings)
	names := make(map[string]string, len(ings))
	for _, ing := range ings {
		names[ing.ID] = ing.Name
	}

	calc := cost.NewCalculator(nil)
	defGP, defStrategy := cfg.Pricing.TargetGrossProfit, configuredStrategy()

	slots := make([]*catalog.ReportEntry, len(recipes))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, r := range recipes {
		g.Go(func() error {
			lines, err := st.GetRecipeLines(gctx, r.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				zap.L().Error("report: load lines", zap.String("recipe_id", r.ID), zap.Error(err))
				return nil // one bad recipe does not abort the report
			}

			rc := calc.ComputeRecipe(r.ID, lines, cat, r.Portions)
			entry := &catalog.ReportEntry{Recipe: r, Cost: rc, Names: names}
			gp, strategy := pricingTarget(r, defGP, defStrategy)
			if pr, ok := pricing.Suggest(rc.CostPerPortion, gp, strategy); ok {
				entry.Price = &pr
			}
			slots[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "report")
	}

	entries := make([]catalog.ReportEntry, 0, len(recipes))
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	if n := failed.Load(); n > 0 {
		zap.L().Warn("report: recipes left out", zap.Int64("count", n))
	}
	return entries, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "costs.xlsx", "output path")
	reportCmd.Flags().StringVar(&reportName, "name", "", "only recipes whose name contains this")
	rootCmd.AddCommand(reportCmd)
}
