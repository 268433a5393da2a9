// ABOUTME: CLI commands for daily, weekly, monthly, trend, and streak views
// ABOUTME: Pure read aggregations over the daily summary cache

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ngan-ptn/anlog/internal/store"
)

// NewTodayCmd creates the today command
func NewTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's totals and logged meals",
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

			if err := printToday(cmd, st, user.ID); err != nil {
				return err
			}

			logs, err := st.ListLogsForDate(ctx, user.ID, time.Now().UTC().Format(store.DateLayout))
			if err != nil {
				return err
			}
			for _, l := range logs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s (%s) %d kcal\n",
					l.LoggedAt.Local().Format("15:04"), l.NameSnapshot, l.Portion, l.Kcal)
			}
			return nil
		},
	}
}

// NewWeekCmd creates the week command
func NewWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show the last seven days",
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

			week, err := st.GetWeeklySummary(ctx, user.ID, time.Now().UTC().Format(store.DateLayout))
			if err != nil {
				return err
			}
			printPeriod(cmd, week)
			return nil
		},
	}
}

// NewMonthCmd creates the month command
func NewMonthCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "month",
		Short: "Show a calendar month with goal achievement",
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

			if month == "" {
				month = time.Now().UTC().Format("2006-01")
			}
			m, err := st.GetMonthlySummary(ctx, user.ID, month)
			if err != nil {
				return err
			}
			printPeriod(cmd, &m.PeriodSummary)
			fmt.Fprintf(cmd.OutOrStdout(), "Goal achievement: %.0f%% of logged days\n",
				m.GoalAchievementRate*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to report (YYYY-MM, default current)")
	return cmd
}

// NewTrendCmd creates the trend command
func NewTrendCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show a kcal bar per day",
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

			points, err := st.GetTrendData(ctx, user.ID, days)
			if err != nil {
				return err
			}

			over := color.New(color.FgRed)
			for _, p := range points {
				bar := strings.Repeat("█", p.Kcal/100)
				line := fmt.Sprintf("%s %5d kcal %s", p.Date, p.Kcal, bar)
				if p.GoalKcal > 0 && p.Kcal > p.GoalKcal {
					over.Fprintln(cmd.OutOrStdout(), line)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "Window length in days")
	return cmd
}

// NewStreakCmd creates the streak command
func NewStreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Show current and longest logging streaks",
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

			streak, err := st.GetStreak(ctx, user.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Current streak: %d day(s)\n", streak.CurrentStreak)
			fmt.Fprintf(cmd.OutOrStdout(), "Longest streak: %d day(s)\n", streak.LongestStreak)
			return nil
		},
	}
}

func printPeriod(cmd *cobra.Command, p *store.PeriodSummary) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s — %s: %d day(s) logged\n", p.StartDate, p.EndDate, p.DaysLogged)
	if p.DaysLogged == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Avg/day: %.0f kcal  P %.0fg  F %.0fg  C %.0fg\n",
		p.AvgKcal, p.AvgProtein, p.AvgFat, p.AvgCarbs)
}
