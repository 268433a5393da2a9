// ABOUTME: Aggregation engine maintaining the daily_summary cache
// ABOUTME: Transactional recompute plus weekly/monthly/trend read aggregations

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// recomputeDailySummaryTx rebuilds the cached summary for one (user, date)
// bucket from the alive logs, inside the caller's transaction. This is the
// only writer of daily_summary rows, which keeps the cache from ever
// drifting from its source.
func (s *Store) recomputeDailySummaryTx(ctx context.Context, tx *sql.Tx, userID, date string) error {
	goals, err := userGoals(ctx, tx, userID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO daily_summary (
			user_id, date, total_kcal, total_protein, total_fat, total_carbs,
			log_count, goal_kcal, goal_protein, updated_at
		)
		SELECT ?, ?,
			COALESCE(SUM(kcal), 0),
			COALESCE(SUM(protein), 0),
			COALESCE(SUM(fat), 0),
			COALESCE(SUM(carbs), 0),
			COUNT(*),
			?, ?, ?
		FROM food_log
		WHERE user_id = ? AND logged_date = ? AND deleted_at IS NULL
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_kcal = excluded.total_kcal,
			total_protein = excluded.total_protein,
			total_fat = excluded.total_fat,
			total_carbs = excluded.total_carbs,
			log_count = excluded.log_count,
			goal_kcal = excluded.goal_kcal,
			goal_protein = excluded.goal_protein,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		userID, date,
		goals.Kcal, goals.Protein,
		s.now().UTC().Format(time.RFC3339),
		userID, date,
	)
	if err != nil {
		return fmt.Errorf("recomputing daily summary: %w", err)
	}
	return nil
}

// RecomputeDailySummary rebuilds one day's summary in its own transaction.
// Log mutations recompute inline; this entry point serves migration backfill
// and goal edits that should reflect immediately.
func (s *Store) RecomputeDailySummary(ctx context.Context, userID, date string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.recomputeDailySummaryTx(ctx, tx, userID, date)
	})
}

const summaryColumns = `
	user_id, date, total_kcal, total_protein, total_fat, total_carbs,
	log_count, goal_kcal, goal_protein, updated_at
`

// GetDailySummary reads the cached summary for one day. Days never logged
// have no row and return ErrNotFound.
func (s *Store) GetDailySummary(ctx context.Context, userID, date string) (*DailySummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM daily_summary WHERE user_id = ? AND date = ?`,
		userID, date)
	return scanSummary(row)
}

// GetTodaySummary reads today's cached summary. A day with no logs yet
// returns a zero summary carrying the user's current goals.
func (s *Store) GetTodaySummary(ctx context.Context, userID string) (*DailySummary, error) {
	today := s.today()
	summary, err := s.GetDailySummary(ctx, userID, today)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DailySummary{
		UserID:      userID,
		Date:        today,
		GoalKcal:    user.Goals.Kcal,
		GoalProtein: user.Goals.Protein,
		UpdatedAt:   s.now().UTC(),
	}, nil
}

// listSummariesBetween returns summary rows with date in [from, to], ascending.
func (s *Store) listSummariesBetween(ctx context.Context, userID, from, to string) ([]*DailySummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM daily_summary
		WHERE user_id = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*DailySummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// GetWeeklySummary aggregates the seven days ending at endDate (inclusive).
// Averages are over logged days only.
func (s *Store) GetWeeklySummary(ctx context.Context, userID, endDate string) (*PeriodSummary, error) {
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("parsing end date: %w", err)
	}
	start := end.AddDate(0, 0, -6).Format(DateLayout)

	rows, err := s.listSummariesBetween(ctx, userID, start, endDate)
	if err != nil {
		return nil, err
	}
	return aggregatePeriod(start, endDate, rows), nil
}

// GetMonthlySummary aggregates a calendar month ("2006-01") and reports the
// goal achievement rate: the share of logged days whose kcal total stayed
// within the goal snapshotted for that day.
func (s *Store) GetMonthlySummary(ctx context.Context, userID, month string) (*MonthlySummary, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("parsing month: %w", err)
	}
	start := first.Format(DateLayout)
	end := first.AddDate(0, 1, -1).Format(DateLayout)

	rows, err := s.listSummariesBetween(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	result := &MonthlySummary{PeriodSummary: *aggregatePeriod(start, end, rows)}

	achieved := 0
	for _, r := range rows {
		if r.LogCount == 0 {
			continue
		}
		if r.TotalKcal <= r.GoalKcal {
			achieved++
		}
	}
	if result.DaysLogged > 0 {
		result.GoalAchievementRate = float64(achieved) / float64(result.DaysLogged)
	}
	return result, nil
}

// GetTrendData returns one point per day for the trailing window ending
// today, padding days without a summary row with zero totals.
func (s *Store) GetTrendData(ctx context.Context, userID string, days int) ([]*TrendPoint, error) {
	if days < 1 {
		days = 1
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := s.listSummariesBetween(ctx, userID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DailySummary, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	points := make([]*TrendPoint, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(DateLayout)
		point := &TrendPoint{Date: date}
		if r, ok := byDate[date]; ok {
			point.Kcal = r.TotalKcal
			point.GoalKcal = r.GoalKcal
			point.LogCount = r.LogCount
		}
		points = append(points, point)
	}
	return points, nil
}

// PruneOldSummaries hard-deletes summary rows older than SummaryRetentionDays.
func (s *Store) PruneOldSummaries(ctx context.Context, userID string) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -SummaryRetentionDays).Format(DateLayout)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_summary WHERE user_id = ? AND date < ?`, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning summaries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking prune result: %w", err)
	}

	if affected > 0 {
		s.logger.Info("pruned old summaries", "user_id", userID, "cutoff", cutoff, "rows", affected)
	}
	return int(affected), nil
}

func aggregatePeriod(start, end string, rows []*DailySummary) *PeriodSummary {
	p := &PeriodSummary{StartDate: start, EndDate: end}

	var protein, fat, carbs float64
	for _, r := range rows {
		if r.LogCount == 0 {
			continue
		}
		p.DaysLogged++
		p.TotalKcal += r.TotalKcal
		protein += r.TotalProtein
		fat += r.TotalFat
		carbs += r.TotalCarbs
	}
	if p.DaysLogged > 0 {
		n := float64(p.DaysLogged)
		p.AvgKcal = float64(p.TotalKcal) / n
		p.AvgProtein = protein / n
		p.AvgFat = fat / n
		p.AvgCarbs = carbs / n
	}
	return p
}

func scanSummary(row rowScanner) (*DailySummary, error) {
	var (
		sum       DailySummary
		updatedAt string
	)
	err := row.Scan(
		&sum.UserID, &sum.Date,
		&sum.TotalKcal, &sum.TotalProtein, &sum.TotalFat, &sum.TotalCarbs,
		&sum.LogCount, &sum.GoalKcal, &sum.GoalProtein,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning summary: %w", err)
	}

	if sum.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &sum, nil
}
