// ABOUTME: CLI commands for favorites: smart-ranked listing, add, remove
// ABOUTME: The listing uses the frequency score, not manual order

package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ngan-ptn/anlog/internal/store"
)

// NewFavoritesCmd creates the favorites command group
func NewFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Show favorites ranked by use",
		RunE:  runFavoritesList,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <food-id>",
			Short: "Mark a catalog food as favorite",
			Args:  cobra.ExactArgs(1),
			RunE:  runFavoritesAdd,
		},
		&cobra.Command{
			Use:   "remove <food-id>",
			Short: "Remove a favorite",
			Args:  cobra.ExactArgs(1),
			RunE:  runFavoritesRemove,
		},
	)
	return cmd
}

func runFavoritesList(cmd *cobra.Command, args []string) error {
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

	scored, err := st.GetFavoritesByFrequency(ctx, user.ID, store.MaxFavoritesPerUser)
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No favorites yet. Add one with: anlog favorites add <food-id>")
		return nil
	}

	bold := color.New(color.Bold)
	for i, f := range scored {
		bold.Fprintf(cmd.OutOrStdout(), "%2d. %s/%s", i+1, f.FoodType, f.FoodID)
		fmt.Fprintf(cmd.OutOrStdout(), "  portion %s  used %d time(s)  score %.2f\n",
			f.DefaultPortion, f.UseCount, f.Score)
	}
	return nil
}

func runFavoritesAdd(cmd *cobra.Command, args []string) error {
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

	food, err := st.GetSystemFood(ctx, args[0])
	if err != nil {
		return fmt.Errorf("no catalog food with ID %q", args[0])
	}

	fav, err := st.AddFavorite(ctx, user.ID, store.FoodTypeSystem, food.ID, store.PortionMedium)
	if errors.Is(err, store.ErrLimitReached) {
		return fmt.Errorf("favorite limit of %d reached", store.MaxFavoritesPerUser)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Favorited %s (position %d).\n", food.NameVI, fav.SortOrder+1)
	return nil
}

func runFavoritesRemove(cmd *cobra.Command, args []string) error {
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

	if err := st.RemoveFavorite(ctx, user.ID, store.FoodTypeSystem, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%q is not a favorite", args[0])
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Favorite removed.")
	return nil
}
