// ABOUTME: Root command wiring: config, logging, store lifecycle, user resolution
// ABOUTME: Every subcommand opens the store through the shared manager here

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ngan-ptn/anlog/internal/catalog"
	"github.com/ngan-ptn/anlog/internal/config"
	"github.com/ngan-ptn/anlog/internal/store"
)

var (
	cfgPath  string
	userFlag string

	version = "dev"
)

// SetVersion records build version info for the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the anlog root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "anlog",
		Short:         "Track meals and nutrition from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/anlog/anlog.yaml)")
	cmd.PersistentFlags().StringVar(&userFlag, "user", "", "Profile name or ID (default: first profile)")

	cmd.AddCommand(
		NewSearchCmd(),
		NewLogCmd(),
		NewTodayCmd(),
		NewWeekCmd(),
		NewMonthCmd(),
		NewTrendCmd(),
		NewStreakCmd(),
		NewFavoritesCmd(),
		NewTemplateCmd(),
		NewImportLegacyCmd(),
		NewPruneCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// openStore loads config, configures logging, and opens the singleton store.
// Callers must Close the returned store; Close persists the snapshot.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	_ = godotenv.Load()

	path := cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	setupLogging(cfg.Logging)

	foods, err := catalog.Foods()
	if err != nil {
		return nil, nil, err
	}

	mgr := store.NewManager(cfg.Database.SnapshotPath, foods)
	st, err := mgr.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// resolveUser picks the profile commands act as. With no profiles yet, one
// is created using the configured default goals.
func resolveUser(ctx context.Context, st *store.Store, cfg *config.Config) (*store.UserProfile, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		name := userFlag
		if name == "" {
			name = "Local User"
		}
		goals := store.Goals{
			Kcal:    cfg.Defaults.KcalGoal,
			Protein: cfg.Defaults.ProteinGoal,
			Carbs:   cfg.Defaults.CarbsGoal,
			Fat:     cfg.Defaults.FatGoal,
		}
		user, err := st.CreateUser(ctx, nil, nil, name, goals)
		if errors.Is(err, store.ErrLimitReached) {
			return nil, fmt.Errorf("profile limit of %d reached", store.MaxUsers)
		}
		return user, err
	}

	if userFlag == "" {
		return users[0], nil
	}
	for _, u := range users {
		if u.ID == userFlag || strings.EqualFold(u.DisplayName, userFlag) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no profile named %q", userFlag)
}

// NewVersionCmd reports the build version.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the anlog version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "anlog", version)
		},
	}
}
