package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/autosave"
	"github.com/sells-group/costing-cli/internal/config"
	"github.com/sells-group/costing-cli/internal/editor"
	"github.com/sells-group/costing-cli/internal/model"
)

var editRecipeID string

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a recipe's lines interactively with autosave",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, closeFn, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		sess := newEditorSession(ctx, b, cfg.Editor)
		defer sess.Close()

		if err := sess.Open(ctx, editRecipeID); err != nil {
			return err
		}

		r := &repl{
			sess:        sess,
			out:         os.Stdout,
			p:           newPrinter(cfg.Pricing.Locale),
			defGP:       cfg.Pricing.TargetGrossProfit,
			defStrategy: configuredStrategy(),
		}
		if err := r.show(); err != nil {
			return err
		}
		return r.run(ctx, os.Stdin)
	},
}

// newEditorSession builds a session with the configured guard and autosave
// timings.
func newEditorSession(ctx context.Context, b editor.Backend, ec config.EditorConfig, extra ...editor.Option) *editor.Session {
	log := zap.L().With(zap.String("component", "editor"))
	opts := []editor.Option{
		editor.WithLogger(log),
		editor.WithGuardWindow(ec.GuardWindow()),
		editor.WithReloadAfterSave(ec.ReloadAfterSaving),
		editor.WithAutosave(
			autosave.WithDebounce(ec.Debounce()),
			autosave.WithSavedDisplay(ec.SavedDisplay()),
			autosave.WithSaveTimeout(ec.SaveTimeout()),
			autosave.WithEnabled(ec.AutosaveEnabled),
			autosave.WithOnStateChange(func(st model.AutosaveState) {
				log.Debug("autosave state",
					zap.String("status", string(st.Status)),
					zap.String("error", st.LastError),
				)
			}),
		),
	}
	return editor.New(ctx, b, append(opts, extra...)...)
}

func init() {
	editCmd.Flags().StringVar(&editRecipeID, "recipe", model.UnsavedRecipeID, "recipe id (default: unsaved scratch recipe)")
	rootCmd.AddCommand(editCmd)
}
