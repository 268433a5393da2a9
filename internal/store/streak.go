// ABOUTME: Streak calculation over the daily summary cache
// ABOUTME: Computes current and longest runs of consecutive logged days

package store

import (
	"context"
	"fmt"
	"time"
)

// GetStreak walks the user's logged days (summary rows with log_count > 0)
// newest first and reports two run lengths: the current streak, which must
// end today or yesterday to count, and the longest streak anywhere in the
// retained history. Any gap of a full calendar day breaks a run.
func (s *Store) GetStreak(ctx context.Context, userID string) (*StreakResult, error) {
	query := `
		SELECT date FROM daily_summary
		WHERE user_id = ? AND log_count > 0
		ORDER BY date DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying logged days: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var days []time.Time
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scanning date: %w", err)
		}
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", date, err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logged days: %w", err)
	}

	result := &StreakResult{}
	if len(days) == 0 {
		return result, nil
	}

	today, err := time.Parse(DateLayout, s.today())
	if err != nil {
		return nil, fmt.Errorf("parsing today: %w", err)
	}

	// Single pass over descending dates: track the length of each
	// consecutive run and remember the longest. The first run is the
	// current streak only when it ends today or yesterday.
	run := 1
	firstRun := -1
	for i := 1; i <= len(days); i++ {
		if i < len(days) && days[i-1].Sub(days[i]) == 24*time.Hour {
			run++
			continue
		}
		if firstRun < 0 {
			firstRun = run
		}
		if run > result.LongestStreak {
			result.LongestStreak = run
		}
		run = 1
	}

	grace := today.Sub(days[0])
	if grace >= 0 && grace <= 24*time.Hour {
		result.CurrentStreak = firstRun
	}
	return result, nil
}
