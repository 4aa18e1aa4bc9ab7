package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/catalog"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/store"
)

var (
	importFile   string
	importSheet  string
	importRecipe string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an ingredient catalog (CSV/XLSX) or a recipe file (YAML)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importFile == "" && importRecipe == "" {
			return eris.New("one of --file or --recipe is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if importFile != "" {
			if err := importCatalog(ctx, st, os.Stdout, importFile, importSheet, importDryRun); err != nil {
				return err
			}
		}
		if importRecipe != "" {
			id, err := importRecipeFile(ctx, st, importRecipe)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "recipe %s saved\n", id)
		}
		return nil
	},
}

// importCatalog loads a catalog file and upserts its ingredients. Skipped
// rows are listed on out.
func importCatalog(ctx context.Context, st store.Store, out io.Writer, path, sheet string, dryRun bool) error {
	res, err := catalog.LoadIngredients(ctx, path, sheet)
	if err != nil {
		return eris.Wrap(err, "import catalog")
	}
	for _, skipped := range res.Skipped {
		_, _ = fmt.Fprintf(out, "row %d skipped: %s\n", skipped.Row, skipped.Reason)
	}

	if dryRun {
		_, _ = fmt.Fprintf(out, "%d ingredients parsed (dry run)\n", len(res.Ingredients))
		return nil
	}

	n, err := st.UpsertIngredients(ctx, res.Ingredients)
	if err != nil {
		return eris.Wrap(err, "import catalog")
	}
	zap.L().Info("catalog imported",
		zap.String("file", path),
		zap.Int("upserted", n),
		zap.Int("skipped", len(res.Skipped)),
	)
	_, _ = fmt.Fprintf(out, "%d ingredients added or changed, %d rows skipped\n", n, len(res.Skipped))
	return nil
}

// importRecipeFile stores a YAML recipe with its lines and inline
// ingredients. An existing recipe with the same id keeps its metadata and
// gets the file's portions and lines.
func importRecipeFile(ctx context.Context, st store.Store, path string) (string, error) {
	rf, err := catalog.LoadRecipeFile(path)
	if err != nil {
		return "", err
	}

	if len(rf.Ingredients) > 0 {
		if _, err := st.UpsertIngredients(ctx, rf.Ingredients); err != nil {
			return "", eris.Wrap(err, "import recipe ingredients")
		}
	}

	id := rf.ID
	exists := false
	if id != model.UnsavedRecipeID {
		if exists, err = st.RecipeExists(ctx, id); err != nil {
			return "", eris.Wrap(err, "import recipe")
		}
	}

	if exists {
		if err := st.UpdatePortions(ctx, id, rf.Portions); err != nil {
			return "", eris.Wrap(err, "import recipe")
		}
	} else {
		created, err := st.CreateRecipe(ctx, rf.Recipe)
		if err != nil {
			return "", eris.Wrap(err, "import recipe")
		}
		id = created.ID
	}

	if err := st.SaveLines(ctx, id, rf.Lines); err != nil {
		return "", eris.Wrap(err, "import recipe lines")
	}
	zap.L().Info("recipe imported",
		zap.String("recipe_id", id),
		zap.Int("lines", len(rf.Lines)),
		zap.Bool("updated", exists),
	)
	return id, nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "ingredient catalog (.csv or .xlsx)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "xlsx sheet name (default first sheet)")
	importCmd.Flags().StringVar(&importRecipe, "recipe", "", "recipe file (.yaml)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse the catalog without writing")
	rootCmd.AddCommand(importCmd)
}
