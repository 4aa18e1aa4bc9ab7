package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
	"github.com/sells-group/costing-cli/internal/store"
)

var (
	recipesName     string
	recipesLimit    int
	recipesPortions float64
	recipesGP       float64
	recipesStrategy string
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List, create and delete stored recipes",
}

var recipesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recipes, err := st.ListRecipes(ctx, store.RecipeFilter{Name: recipesName, Limit: recipesLimit})
		if err != nil {
			return eris.Wrap(err, "list recipes")
		}
		formatRecipes(os.Stdout, recipes)
		return nil
	},
}

var recipesCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an empty recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r := model.Recipe{Name: args[0], Portions: recipesPortions, TargetGrossProfit: recipesGP}
		if recipesStrategy != "" {
			s, err := pricing.ParseStrategy(recipesStrategy)
			if err != nil {
				return err
			}
			r.Strategy = s
		}
		if r.TargetGrossProfit != 0 {
			if err := pricing.ValidateTarget(r.TargetGrossProfit); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		created, err := st.CreateRecipe(ctx, r)
		if err != nil {
			return eris.Wrap(err, "create recipe")
		}
		_, _ = fmt.Fprintln(os.Stdout, created.ID)
		return nil
	},
}

var recipesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a recipe and its lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return eris.Wrap(st.DeleteRecipe(ctx, args[0]), "delete recipe")
	},
}

func formatRecipes(out io.Writer, recipes []model.Recipe) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPORTIONS\tTARGET GP\tSTRATEGY\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t---------\t--------\t-------")
	for _, r := range recipes {
		gp := "-"
		if r.TargetGrossProfit > 0 {
			gp = fmt.Sprintf("%g%%", r.TargetGrossProfit)
		}
		strategy := string(r.Strategy)
		if strategy == "" {
			strategy = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Portions, gp, strategy, r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func init() {
	recipesListCmd.Flags().StringVar(&recipesName, "name", "", "filter by name substring")
	recipesListCmd.Flags().IntVar(&recipesLimit, "limit", 100, "max recipes to list")
	recipesCreateCmd.Flags().Float64Var(&recipesPortions, "portions", 1, "number of portions")
	recipesCreateCmd.Flags().Float64Var(&recipesGP, "gp", 0, "target gross profit percent")
	recipesCreateCmd.Flags().StringVar(&recipesStrategy, "strategy", "", "charm, whole or real")

	recipesCmd.AddCommand(recipesListCmd, recipesCreateCmd, recipesDeleteCmd)
	rootCmd.AddCommand(recipesCmd)
}
