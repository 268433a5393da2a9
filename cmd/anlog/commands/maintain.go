// ABOUTME: CLI commands for the one-time legacy import and retention pruning
// ABOUTME: Import is flag-guarded in the store; rerunning it is a safe no-op

package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewImportLegacyCmd creates the import-legacy command
func NewImportLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy [dir]",
		Short: "Import the old flat JSON store (runs at most once)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			dir := cfg.Legacy.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no legacy directory: pass one or set legacy.dir in the config")
			}

			result, err := st.ImportLegacyData(ctx, dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d log(s), created %d custom food(s).\n",
				result.MigratedLogs, result.CreatedFoods)
			if len(result.Errors) > 0 {
				warn := color.New(color.FgYellow)
				warn.Fprintf(cmd.OutOrStdout(), "%d item(s) skipped:\n", len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e)
				}
			}
			return nil
		},
	}
}

// NewPruneCmd creates the prune command
func NewPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Hard-delete logs and summaries past their retention windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			user, err := resolveUser(ctx, st, cfg)
			if err != nil {
				return err
			}

			logs, err := st.PruneOldLogs(ctx, user.ID)
			if err != nil {
				return err
			}
			summaries, err := st.PruneOldSummaries(ctx, user.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d log(s) and %d summary row(s).\n", logs, summaries)
			return nil
		},
	}
}
