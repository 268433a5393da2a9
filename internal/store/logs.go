// ABOUTME: Food log repository: capped creation, soft delete/restore, retention pruning
// ABOUTME: Every mutation recomputes the affected daily summary in the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogSystemFood logs one portion of a catalog food for the user, snapshotting
// the food's name and macros at log time.
func (s *Store) LogSystemFood(ctx context.Context, userID, foodID string, portion Portion) (*FoodLog, error) {
	food, err := s.GetSystemFood(ctx, foodID)
	if err != nil {
		return nil, err
	}
	macros, ok := food.PortionMacros(portion)
	if !ok {
		return nil, fmt.Errorf("system food %s has no portion %q", foodID, portion)
	}

	log := &FoodLog{
		UserID:       userID,
		FoodType:     FoodTypeSystem,
		FoodID:       foodID,
		Portion:      portion,
		NameSnapshot: food.NameVI,
		Kcal:         macros.Kcal,
		Protein:      macros.Protein,
		Fat:          macros.Fat,
		Carbs:        macros.Carbs,
		LoggedAt:     s.now().UTC(),
	}
	return s.CreateLog(ctx, log)
}

// LogCustomFood logs the user's custom food (always a single portion).
func (s *Store) LogCustomFood(ctx context.Context, userID, foodID string) (*FoodLog, error) {
	food, err := s.GetCustomFood(ctx, userID, foodID)
	if err != nil {
		return nil, err
	}

	log := &FoodLog{
		UserID:       userID,
		FoodType:     FoodTypeCustom,
		FoodID:       foodID,
		Portion:      PortionSingle,
		NameSnapshot: food.Name,
		Kcal:         food.Kcal,
		Protein:      food.Protein,
		Fat:          food.Fat,
		Carbs:        food.Carbs,
		LoggedAt:     s.now().UTC(),
	}
	return s.CreateLog(ctx, log)
}

// CreateLog inserts a prebuilt log row. ID and LoggedDate are derived here;
// LoggedAt defaults to now when zero. Returns ErrLimitReached once the day
// holds MaxLogsPerDay alive logs, leaving the summary untouched.
func (s *Store) CreateLog(ctx context.Context, log *FoodLog) (*FoodLog, error) {
	log.ID = uuid.NewString()
	if log.LoggedAt.IsZero() {
		log.LoggedAt = s.now().UTC()
	}
	log.LoggedDate = log.LoggedAt.Format(DateLayout)
	log.DeletedAt = nil

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO food_log (
				id, user_id, food_type, food_id, portion, name_snapshot,
				kcal, protein, fat, carbs, logged_date, logged_at, deleted_at
			)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL
			WHERE (
				SELECT COUNT(*) FROM food_log
				WHERE user_id = ? AND logged_date = ? AND deleted_at IS NULL
			) < ?
		`
		res, err := tx.ExecContext(ctx, query,
			log.ID, log.UserID, log.FoodType, log.FoodID, log.Portion, log.NameSnapshot,
			log.Kcal, log.Protein, log.Fat, log.Carbs,
			log.LoggedDate, log.LoggedAt.UTC().Format(time.RFC3339),
			log.UserID, log.LoggedDate, MaxLogsPerDay,
		)
		if err != nil {
			return fmt.Errorf("inserting log: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking insert result: %w", err)
		}
		if affected == 0 {
			return ErrLimitReached
		}

		return s.recomputeDailySummaryTx(ctx, tx, log.UserID, log.LoggedDate)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created log", "id", log.ID, "user_id", log.UserID, "date", log.LoggedDate, "kcal", log.Kcal)
	return log, nil
}

// DeleteLog soft-deletes a log so it can be restored for undo. The day's
// summary is recomputed in the same transaction.
func (s *Store) DeleteLog(ctx context.Context, userID, id string) error {
	return s.setLogDeleted(ctx, userID, id, true)
}

// RestoreLog undoes a soft delete, subject to the day's capacity cap.
func (s *Store) RestoreLog(ctx context.Context, userID, id string) error {
	return s.setLogDeleted(ctx, userID, id, false)
}

func (s *Store) setLogDeleted(ctx context.Context, userID, id string, deleted bool) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var date string
		err := tx.QueryRowContext(ctx,
			`SELECT logged_date FROM food_log WHERE id = ? AND user_id = ?`, id, userID).Scan(&date)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locating log: %w", err)
		}

		var res sql.Result
		if deleted {
			res, err = tx.ExecContext(ctx,
				`UPDATE food_log SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
				s.now().UTC().Format(time.RFC3339), id)
		} else {
			// Restoring counts against the daily cap like a fresh insert.
			res, err = tx.ExecContext(ctx, `
				UPDATE food_log SET deleted_at = NULL
				WHERE id = ? AND deleted_at IS NOT NULL
				  AND (
					SELECT COUNT(*) FROM food_log
					WHERE user_id = ? AND logged_date = ? AND deleted_at IS NULL
				  ) < ?`,
				id, userID, date, MaxLogsPerDay)
		}
		if err != nil {
			return fmt.Errorf("updating log state: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking update result: %w", err)
		}
		if affected == 0 {
			if deleted {
				return ErrNotFound
			}
			return ErrLimitReached
		}

		return s.recomputeDailySummaryTx(ctx, tx, userID, date)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("toggled log deletion", "id", id, "user_id", userID, "deleted", deleted)
	return nil
}

const logColumns = `
	id, user_id, food_type, food_id, portion, name_snapshot,
	kcal, protein, fat, carbs, logged_date, logged_at, deleted_at
`

// GetLog retrieves a log row (alive or soft-deleted) owned by the user.
func (s *Store) GetLog(ctx context.Context, userID, id string) (*FoodLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM food_log WHERE id = ? AND user_id = ?`, id, userID)
	return scanLog(row)
}

// ListLogsForDate returns the user's alive logs for one calendar day,
// oldest first.
func (s *Store) ListLogsForDate(ctx context.Context, userID, date string) ([]*FoodLog, error) {
	query := `
		SELECT ` + logColumns + `
		FROM food_log
		WHERE user_id = ? AND logged_date = ? AND deleted_at IS NULL
		ORDER BY logged_at ASC
	`
	return s.queryLogs(ctx, query, userID, date)
}

// ListLogsBetween returns alive logs with logged_date in [from, to], oldest first.
func (s *Store) ListLogsBetween(ctx context.Context, userID, from, to string) ([]*FoodLog, error) {
	query := `
		SELECT ` + logColumns + `
		FROM food_log
		WHERE user_id = ? AND logged_date BETWEEN ? AND ? AND deleted_at IS NULL
		ORDER BY logged_at ASC
	`
	return s.queryLogs(ctx, query, userID, from, to)
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]*FoodLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*FoodLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PruneOldLogs hard-deletes the user's logs (alive and soft-deleted) whose
// logged_date is older than LogRetentionDays. Summaries for pruned dates are
// left alone: they outlive raw logs under their own retention window.
func (s *Store) PruneOldLogs(ctx context.Context, userID string) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -LogRetentionDays).Format(DateLayout)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM food_log WHERE user_id = ? AND logged_date < ?`, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking prune result: %w", err)
	}

	if affected > 0 {
		s.logger.Info("pruned old logs", "user_id", userID, "cutoff", cutoff, "rows", affected)
	}
	return int(affected), nil
}

func scanLog(row rowScanner) (*FoodLog, error) {
	var (
		l         FoodLog
		loggedAt  string
		deletedAt sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.FoodType, &l.FoodID, &l.Portion, &l.NameSnapshot,
		&l.Kcal, &l.Protein, &l.Fat, &l.Carbs,
		&l.LoggedDate, &loggedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}

	if l.LoggedAt, err = time.Parse(time.RFC3339, loggedAt); err != nil {
		return nil, fmt.Errorf("parsing logged_at: %w", err)
	}
	if l.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
