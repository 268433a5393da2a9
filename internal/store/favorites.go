// ABOUTME: Favorite repository: idempotent add, toggle, usage tracking, manual ordering
// ABOUTME: At most one alive favorite exists per (user, food type, food id)

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const favoriteColumns = `
	id, user_id, food_type, food_id, sort_order, default_portion,
	use_count, last_used_at, created_at, deleted_at
`

// AddFavorite marks a food as favorite. Idempotent: when an alive favorite
// for (user, food type, food id) already exists it is returned unchanged and
// does not count against the cap. A fresh add takes the next sort_order and
// is subject to MaxFavoritesPerUser.
func (s *Store) AddFavorite(ctx context.Context, userID string, foodType FoodType, foodID string, defaultPortion Portion) (*Favorite, error) {
	existing, err := s.getAliveFavorite(ctx, userID, foodType, foodID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.NewString()
	createdAt := s.now().UTC()

	// One conditional statement holds the cap check, the duplicate guard,
	// and the next-sort-order computation together.
	query := `
		INSERT INTO favorite (
			id, user_id, food_type, food_id, sort_order, default_portion,
			use_count, last_used_at, created_at, deleted_at
		)
		SELECT ?, ?, ?, ?,
			COALESCE((SELECT MAX(sort_order) + 1 FROM favorite WHERE user_id = ? AND deleted_at IS NULL), 0),
			?, 0, NULL, ?, NULL
		WHERE (SELECT COUNT(*) FROM favorite WHERE user_id = ? AND deleted_at IS NULL) < ?
		  AND NOT EXISTS (
			SELECT 1 FROM favorite
			WHERE user_id = ? AND food_type = ? AND food_id = ? AND deleted_at IS NULL
		  )
	`
	res, err := s.db.ExecContext(ctx, query,
		id, userID, foodType, foodID,
		userID,
		defaultPortion, createdAt.Format(time.RFC3339),
		userID, MaxFavoritesPerUser,
		userID, foodType, foodID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting favorite: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		// Either a concurrent add won (return it) or the cap is hit.
		if existing, err := s.getAliveFavorite(ctx, userID, foodType, foodID); err == nil {
			return existing, nil
		}
		return nil, ErrLimitReached
	}

	s.logger.Debug("added favorite", "id", id, "user_id", userID, "food_id", foodID)
	return s.getAliveFavorite(ctx, userID, foodType, foodID)
}

// RemoveFavorite soft-deletes the alive favorite for the food.
func (s *Store) RemoveFavorite(ctx context.Context, userID string, foodType FoodType, foodID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE favorite SET deleted_at = ?
		WHERE user_id = ? AND food_type = ? AND food_id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(time.RFC3339), userID, foodType, foodID)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking remove result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed favorite", "user_id", userID, "food_id", foodID)
	return nil
}

// ToggleFavorite removes the favorite if present, otherwise adds it. The
// returned favorite is nil exactly when the toggle removed; callers must not
// read anything else into the result.
func (s *Store) ToggleFavorite(ctx context.Context, userID string, foodType FoodType, foodID string, defaultPortion Portion) (*Favorite, error) {
	err := s.RemoveFavorite(ctx, userID, foodType, foodID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.AddFavorite(ctx, userID, foodType, foodID, defaultPortion)
}

// RecordFavoriteUse bumps use_count and last_used_at after the favorite is
// logged. Missing favorites are ignored: logging a food that was unfavorited
// mid-flow is not an error.
func (s *Store) RecordFavoriteUse(ctx context.Context, userID string, foodType FoodType, foodID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE favorite SET use_count = use_count + 1, last_used_at = ?
		WHERE user_id = ? AND food_type = ? AND food_id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(time.RFC3339), userID, foodType, foodID)
	if err != nil {
		return fmt.Errorf("recording favorite use: %w", err)
	}
	return nil
}

// ListFavorites returns the user's alive favorites in manual sort order.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]*Favorite, error) {
	query := `
		SELECT ` + favoriteColumns + `
		FROM favorite
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY sort_order ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var favorites []*Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// ReorderFavorites assigns sequential sort_order following the given ID
// order. IDs not in the list keep their positions relative to each other
// after the reordered block.
func (s *Store) ReorderFavorites(ctx context.Context, userID string, orderedIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, id := range orderedIDs {
			res, err := tx.ExecContext(ctx, `
				UPDATE favorite SET sort_order = ?
				WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
				i, id, userID)
			if err != nil {
				return fmt.Errorf("reordering favorite %s: %w", id, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking reorder result: %w", err)
			}
			if affected == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

func (s *Store) getAliveFavorite(ctx context.Context, userID string, foodType FoodType, foodID string) (*Favorite, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorite
		WHERE user_id = ? AND food_type = ? AND food_id = ? AND deleted_at IS NULL`,
		userID, foodType, foodID)
	return scanFavorite(row)
}

func scanFavorite(row rowScanner) (*Favorite, error) {
	var (
		f                     Favorite
		lastUsedAt, deletedAt sql.NullString
		createdAt             string
	)
	err := row.Scan(
		&f.ID, &f.UserID, &f.FoodType, &f.FoodID, &f.SortOrder, &f.DefaultPortion,
		&f.UseCount, &lastUsedAt, &createdAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning favorite: %w", err)
	}

	if f.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if f.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
