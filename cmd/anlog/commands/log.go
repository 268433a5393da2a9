// ABOUTME: CLI commands to log foods and undo logged entries
// ABOUTME: Resolves catalog or custom foods and prints the updated daily total

package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ngan-ptn/anlog/internal/store"
)

// NewLogCmd creates the log command
func NewLogCmd() *cobra.Command {
	var (
		portion string
		custom  bool
		undo    string
	)

	cmd := &cobra.Command{
		Use:   "log [food]",
		Short: "Log a meal",
		Long: `Log a food by catalog ID or name.

Examples:
  anlog log pho-bo --portion L
  anlog log "banh mi"
  anlog log my-salad --custom
  anlog log --undo <log-id>`,
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

			if undo != "" {
				if err := st.DeleteLog(ctx, user.ID, undo); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Log removed.")
				return printToday(cmd, st, user.ID)
			}
			if len(args) == 0 {
				return errors.New("a food is required unless --undo is given")
			}

			var logged *store.FoodLog
			if custom {
				logged, err = logCustom(cmd, st, user.ID, args[0])
			} else {
				logged, err = logSystem(cmd, st, user.ID, args[0], store.Portion(portion))
			}
			if errors.Is(err, store.ErrLimitReached) {
				return fmt.Errorf("daily limit of %d logs reached", store.MaxLogsPerDay)
			}
			if err != nil {
				return err
			}

			if err := st.RecordFavoriteUse(ctx, user.ID, logged.FoodType, logged.FoodID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%d kcal). Undo: anlog log --undo %s\n",
				logged.NameSnapshot, logged.Kcal, logged.ID)
			return printToday(cmd, st, user.ID)
		},
	}

	cmd.Flags().StringVar(&portion, "portion", "M", "Portion size: S, M, or L")
	cmd.Flags().BoolVar(&custom, "custom", false, "Log one of your custom foods by name")
	cmd.Flags().StringVar(&undo, "undo", "", "Soft-delete a previously logged entry by ID")
	return cmd
}

func logSystem(cmd *cobra.Command, st *store.Store, userID, query string, portion store.Portion) (*store.FoodLog, error) {
	ctx := cmd.Context()

	// Exact catalog ID first, then name search.
	if _, err := st.GetSystemFood(ctx, query); err == nil {
		return st.LogSystemFood(ctx, userID, query, portion)
	}

	matches, err := st.SearchSystemFoods(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no catalog food matches %q", query)
	}
	return st.LogSystemFood(ctx, userID, matches[0].ID, portion)
}

func logCustom(cmd *cobra.Command, st *store.Store, userID, name string) (*store.FoodLog, error) {
	ctx := cmd.Context()

	foods, err := st.ListCustomFoods(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, f := range foods {
		if f.ID == name || f.Name == name {
			return st.LogCustomFood(ctx, userID, f.ID)
		}
	}
	return nil, fmt.Errorf("no custom food named %q", name)
}

// printToday renders the running daily total against the goal.
func printToday(cmd *cobra.Command, st *store.Store, userID string) error {
	summary, err := st.GetTodaySummary(cmd.Context(), userID)
	if err != nil {
		return err
	}

	kcal := color.New(color.FgGreen)
	if summary.GoalKcal > 0 && summary.TotalKcal > summary.GoalKcal {
		kcal = color.New(color.FgRed)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Today: ")
	kcal.Fprintf(cmd.OutOrStdout(), "%d/%d kcal", summary.TotalKcal, summary.GoalKcal)
	fmt.Fprintf(cmd.OutOrStdout(), "  P %.0fg  F %.0fg  C %.0fg  (%d logs)\n",
		summary.TotalProtein, summary.TotalFat, summary.TotalCarbs, summary.LogCount)
	return nil
}
