// ABOUTME: System food catalog reads and the user-owned custom food repository
// ABOUTME: Custom foods are capped per user and soft-deleted; the catalog is read-only

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const systemFoodColumns = `
	id, name_vi, name_en, category, serving_description, confidence,
	kcal_s, protein_s, fat_s, carbs_s, fibre_s, sugar_s, sodium_s,
	kcal_m, protein_m, fat_m, carbs_m, fibre_m, sugar_m, sodium_m,
	kcal_l, protein_l, fat_l, carbs_l, fibre_l, sugar_l, sodium_l,
	is_active
`

// GetSystemFood retrieves one catalog entry by ID.
func (s *Store) GetSystemFood(ctx context.Context, id string) (*SystemFood, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+systemFoodColumns+` FROM system_food WHERE id = ?`, id)
	return scanSystemFood(row)
}

// SearchSystemFoods matches active catalog entries whose Vietnamese or
// English name contains the term, case-insensitively. SQLite's NOCASE
// collation only folds ASCII, so the folding happens here where Vietnamese
// letters lower correctly; the catalog is small enough to scan.
func (s *Store) SearchSystemFoods(ctx context.Context, term string, limit int) ([]*SystemFood, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	query := `
		SELECT ` + systemFoodColumns + `
		FROM system_food
		WHERE is_active = 1
		ORDER BY confidence DESC, name_vi ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching system foods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var foods []*SystemFood
	for rows.Next() {
		f, err := scanSystemFood(rows)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(strings.ToLower(f.NameVI), needle) &&
			!strings.Contains(strings.ToLower(f.NameEN), needle) {
			continue
		}
		foods = append(foods, f)
		if limit > 0 && len(foods) == limit {
			break
		}
	}
	return foods, rows.Err()
}

// ListSystemFoodsByCategory returns active catalog entries in one category.
func (s *Store) ListSystemFoodsByCategory(ctx context.Context, category string) ([]*SystemFood, error) {
	query := `
		SELECT ` + systemFoodColumns + `
		FROM system_food
		WHERE is_active = 1 AND category = ?
		ORDER BY name_vi ASC
	`
	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("listing category foods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var foods []*SystemFood
	for rows.Next() {
		f, err := scanSystemFood(rows)
		if err != nil {
			return nil, err
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

func scanSystemFood(row rowScanner) (*SystemFood, error) {
	var (
		f        SystemFood
		isActive int
	)
	err := row.Scan(
		&f.ID, &f.NameVI, &f.NameEN, &f.Category, &f.ServingDescription, &f.Confidence,
		&f.Small.Kcal, &f.Small.Protein, &f.Small.Fat, &f.Small.Carbs, &f.Small.Fibre, &f.Small.Sugar, &f.Small.Sodium,
		&f.Medium.Kcal, &f.Medium.Protein, &f.Medium.Fat, &f.Medium.Carbs, &f.Medium.Fibre, &f.Medium.Sugar, &f.Medium.Sodium,
		&f.Large.Kcal, &f.Large.Protein, &f.Large.Fat, &f.Large.Carbs, &f.Large.Fibre, &f.Large.Sugar, &f.Large.Sodium,
		&isActive,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning system food: %w", err)
	}
	f.IsActive = isActive != 0
	return &f, nil
}

// CreateCustomFood inserts a user-owned single-portion food. Returns
// ErrLimitReached when the user already has MaxCustomFoodsPerUser alive foods.
func (s *Store) CreateCustomFood(ctx context.Context, food *CustomFood) (*CustomFood, error) {
	food.ID = uuid.NewString()
	food.CreatedAt = s.now().UTC()
	food.UpdatedAt = food.CreatedAt
	food.DeletedAt = nil

	query := `
		INSERT INTO custom_food (
			id, user_id, name, kcal, protein, fat, carbs, fibre, sugar, sodium,
			created_at, updated_at, deleted_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL
		WHERE (SELECT COUNT(*) FROM custom_food WHERE user_id = ? AND deleted_at IS NULL) < ?
	`
	res, err := s.db.ExecContext(ctx, query,
		food.ID, food.UserID, food.Name,
		food.Kcal, food.Protein, food.Fat, food.Carbs,
		food.Fibre, food.Sugar, food.Sodium,
		food.CreatedAt.Format(time.RFC3339),
		food.UpdatedAt.Format(time.RFC3339),
		food.UserID, MaxCustomFoodsPerUser,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting custom food: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		return nil, ErrLimitReached
	}

	s.logger.Debug("created custom food", "id", food.ID, "user_id", food.UserID, "name", food.Name)
	return food, nil
}

const customFoodColumns = `
	id, user_id, name, kcal, protein, fat, carbs, fibre, sugar, sodium,
	created_at, updated_at, deleted_at
`

// GetCustomFood retrieves one alive custom food owned by the user.
func (s *Store) GetCustomFood(ctx context.Context, userID, id string) (*CustomFood, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customFoodColumns+` FROM custom_food WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, userID)
	return scanCustomFood(row)
}

// findCustomFoodByName matches an alive custom food by exact name with
// Unicode case folding. Used by migration to dedupe promoted manual entries.
func (s *Store) findCustomFoodByName(ctx context.Context, userID, name string) (*CustomFood, error) {
	foods, err := s.ListCustomFoods(ctx, userID)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(name)
	for _, f := range foods {
		if strings.EqualFold(f.Name, want) {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

// ListCustomFoods returns the user's alive custom foods, newest first.
func (s *Store) ListCustomFoods(ctx context.Context, userID string) ([]*CustomFood, error) {
	query := `
		SELECT ` + customFoodColumns + `
		FROM custom_food
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying custom foods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var foods []*CustomFood
	for rows.Next() {
		f, err := scanCustomFood(rows)
		if err != nil {
			return nil, err
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

// UpdateCustomFood rewrites an alive custom food's name and macros. Logged
// history keeps its snapshots and is unaffected.
func (s *Store) UpdateCustomFood(ctx context.Context, food *CustomFood) error {
	query := `
		UPDATE custom_food
		SET name = ?, kcal = ?, protein = ?, fat = ?, carbs = ?,
		    fibre = ?, sugar = ?, sodium = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		food.Name, food.Kcal, food.Protein, food.Fat, food.Carbs,
		food.Fibre, food.Sugar, food.Sodium,
		s.now().UTC().Format(time.RFC3339),
		food.ID, food.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating custom food: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomFood soft-deletes a custom food. Existing logs keep their
// snapshots; the food stops appearing in lists and lookups.
func (s *Store) DeleteCustomFood(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_food SET deleted_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(time.RFC3339), id, userID)
	if err != nil {
		return fmt.Errorf("deleting custom food: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted custom food", "id", id, "user_id", userID)
	return nil
}

func scanCustomFood(row rowScanner) (*CustomFood, error) {
	var (
		f                    CustomFood
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	err := row.Scan(
		&f.ID, &f.UserID, &f.Name,
		&f.Kcal, &f.Protein, &f.Fat, &f.Carbs,
		&f.Fibre, &f.Sugar, &f.Sodium,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning custom food: %w", err)
	}

	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if f.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
