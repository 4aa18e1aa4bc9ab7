package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/config"
)

var cfg *config.Config

// validatedCommands are the commands whose config is checked before they run.
var validatedCommands = map[string]bool{
	"migrate": true, "import": true, "cost": true, "price": true,
	"report": true, "edit": true, "serve": true,
}

var rootCmd = &cobra.Command{
	Use:   "costing",
	Short: "Recipe costing and menu pricing",
	Long:  "Costs recipes from an ingredient catalog with unit conversion, waste and yield, recommends menu prices, and edits recipe lines with debounced autosave.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return eris.Wrap(err, "load .env")
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		if !validatedCommands[cmd.Name()] {
			return nil
		}
		return cfg.Validate(cmd.Name())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
