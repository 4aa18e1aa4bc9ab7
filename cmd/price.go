package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
)

var (
	priceCost     float64
	priceGP       float64
	priceStrategy string
	priceJSON     bool
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Recommend a menu price for a per-portion food cost",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var gp *float64
		if cmd.Flags().Changed("gp") {
			gp = &priceGP
		}
		pr, err := recommendPrice(priceCost, gp, priceStrategy)
		if err != nil {
			return err
		}
		if priceJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(pr), "encode price")
		}
		formatPricing(os.Stdout, newPrinter(cfg.Pricing.Locale), pr)
		return nil
	},
}

// recommendPrice validates flag input and prices one portion. A nil gp and
// an empty strategy fall back to the configured defaults; an explicit 0 is
// priced at cost.
func recommendPrice(foodCost float64, targetGP *float64, strategy string) (model.PricingResult, error) {
	if foodCost <= 0 {
		return model.PricingResult{}, eris.New("--cost must be greater than zero")
	}
	gp := cfg.Pricing.TargetGrossProfit
	if targetGP != nil {
		gp = *targetGP
	}
	if err := pricing.ValidateTarget(gp); err != nil {
		return model.PricingResult{}, err
	}
	st := configuredStrategy()
	if strategy != "" {
		var err error
		if st, err = pricing.ParseStrategy(strategy); err != nil {
			return model.PricingResult{}, err
		}
	}
	return pricing.ComputePrice(foodCost, gp, st), nil
}

func init() {
	priceCmd.Flags().Float64Var(&priceCost, "cost", 0, "food cost of one portion")
	priceCmd.Flags().Float64Var(&priceGP, "gp", 0, "target gross profit percent (default from config)")
	priceCmd.Flags().StringVar(&priceStrategy, "strategy", "", "charm, whole or real (default from config)")
	priceCmd.Flags().BoolVar(&priceJSON, "json", false, "print JSON instead of a table")
	_ = priceCmd.MarkFlagRequired("cost")
	rootCmd.AddCommand(priceCmd)
}
