// ABOUTME: CLI command to search the food catalog
// ABOUTME: Records the term in the recent-search FIFO and prints matches

package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search the food catalog",
		Long: `Search catalog foods by Vietnamese or English name.

With no term, prints your recent searches.`,
		Args: cobra.MaximumNArgs(1),
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

			if len(args) == 0 {
				recents, err := st.ListRecentSearches(ctx, user.ID)
				if err != nil {
					return err
				}
				if len(recents) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recent searches.")
					return nil
				}
				for _, r := range recents {
					fmt.Fprintln(cmd.OutOrStdout(), r.SearchTerm)
				}
				return nil
			}

			term := args[0]
			foods, err := st.SearchSystemFoods(ctx, term, limit)
			if err != nil {
				return err
			}
			if err := st.AddRecentSearch(ctx, user.ID, term); err != nil {
				return err
			}

			if len(foods) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No foods match %q.\n", term)
				return nil
			}

			bold := color.New(color.Bold)
			for _, f := range foods {
				bold.Fprintf(cmd.OutOrStdout(), "%s", f.NameVI)
				fmt.Fprintf(cmd.OutOrStdout(), " (%s) — %s, M: %d kcal [%s]\n",
					f.NameEN, f.ServingDescription, f.Medium.Kcal, f.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	return cmd
}
