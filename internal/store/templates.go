// ABOUTME: Meal template repository: capped named bundles of foods with cached totals
// ABOUTME: Logging a template expands its items into food logs in one transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateTemplate saves a named bundle of food items with cached totals.
// Returns ErrLimitReached when the user holds MaxTemplatesPerUser alive
// templates or the item list exceeds MaxItemsPerTemplate.
func (s *Store) CreateTemplate(ctx context.Context, userID, name, description string, items []*TemplateItem) (*MealTemplate, error) {
	if len(items) > MaxItemsPerTemplate {
		return nil, ErrLimitReached
	}

	tpl := &MealTemplate{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
		Items:       items,
	}
	for _, item := range items {
		tpl.TotalKcal += item.Kcal
		tpl.TotalProtein += item.Protein
		tpl.TotalFat += item.Fat
		tpl.TotalCarbs += item.Carbs
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO meal_template (
				id, user_id, name, description,
				total_kcal, total_protein, total_fat, total_carbs,
				use_count, last_used_at, created_at, updated_at, deleted_at
			)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, NULL
			WHERE (SELECT COUNT(*) FROM meal_template WHERE user_id = ? AND deleted_at IS NULL) < ?
		`
		res, err := tx.ExecContext(ctx, query,
			tpl.ID, tpl.UserID, tpl.Name, tpl.Description,
			tpl.TotalKcal, tpl.TotalProtein, tpl.TotalFat, tpl.TotalCarbs,
			tpl.CreatedAt.Format(time.RFC3339), tpl.UpdatedAt.Format(time.RFC3339),
			userID, MaxTemplatesPerUser,
		)
		if err != nil {
			return fmt.Errorf("inserting template: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking insert result: %w", err)
		}
		if affected == 0 {
			return ErrLimitReached
		}

		for i, item := range tpl.Items {
			item.ID = uuid.NewString()
			item.TemplateID = tpl.ID
			item.SortOrder = i
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO template_item (
					id, template_id, food_type, food_id, portion, name_snapshot,
					kcal, protein, fat, carbs, is_required, sort_order
				)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				item.ID, item.TemplateID, item.FoodType, item.FoodID, item.Portion, item.NameSnapshot,
				item.Kcal, item.Protein, item.Fat, item.Carbs,
				boolToInt(item.IsRequired), item.SortOrder,
			); err != nil {
				return fmt.Errorf("inserting template item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created template", "id", tpl.ID, "user_id", userID, "items", len(items))
	return tpl, nil
}

const templateColumns = `
	id, user_id, name, description,
	total_kcal, total_protein, total_fat, total_carbs,
	use_count, last_used_at, created_at, updated_at, deleted_at
`

// GetTemplate retrieves an alive template with its items in sort order.
func (s *Store) GetTemplate(ctx context.Context, userID, id string) (*MealTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM meal_template WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, userID)
	tpl, err := scanTemplate(row)
	if err != nil {
		return nil, err
	}
	if tpl.Items, err = s.templateItems(ctx, tpl.ID); err != nil {
		return nil, err
	}
	return tpl, nil
}

// ListTemplates returns the user's alive templates (without items), newest first.
func (s *Store) ListTemplates(ctx context.Context, userID string) ([]*MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_template
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*MealTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// DeleteTemplate soft-deletes a template. Its items stay in place for restore.
func (s *Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meal_template SET deleted_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(time.RFC3339), id, userID)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted template", "id", id, "user_id", userID)
	return nil
}

// LogTemplate expands a template into food logs for today: every required
// item always, optional items only when includeOptional is set. The whole
// expansion shares one transaction with the summary recompute and the
// template's use-count bump, so a daily-cap failure mid-way logs nothing.
func (s *Store) LogTemplate(ctx context.Context, userID, templateID string, includeOptional bool) ([]*FoodLog, error) {
	tpl, err := s.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	loggedAt := s.now().UTC()
	date := loggedAt.Format(DateLayout)

	var logs []*FoodLog
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range tpl.Items {
			if !item.IsRequired && !includeOptional {
				continue
			}

			log := &FoodLog{
				ID:           uuid.NewString(),
				UserID:       userID,
				FoodType:     item.FoodType,
				FoodID:       item.FoodID,
				Portion:      item.Portion,
				NameSnapshot: item.NameSnapshot,
				Kcal:         item.Kcal,
				Protein:      item.Protein,
				Fat:          item.Fat,
				Carbs:        item.Carbs,
				LoggedDate:   date,
				LoggedAt:     loggedAt,
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO food_log (
					id, user_id, food_type, food_id, portion, name_snapshot,
					kcal, protein, fat, carbs, logged_date, logged_at, deleted_at
				)
				SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL
				WHERE (
					SELECT COUNT(*) FROM food_log
					WHERE user_id = ? AND logged_date = ? AND deleted_at IS NULL
				) < ?`,
				log.ID, log.UserID, log.FoodType, log.FoodID, log.Portion, log.NameSnapshot,
				log.Kcal, log.Protein, log.Fat, log.Carbs,
				log.LoggedDate, log.LoggedAt.Format(time.RFC3339),
				userID, date, MaxLogsPerDay,
			)
			if err != nil {
				return fmt.Errorf("inserting template log: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking insert result: %w", err)
			}
			if affected == 0 {
				return ErrLimitReached
			}
			logs = append(logs, log)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE meal_template SET use_count = use_count + 1, last_used_at = ?, updated_at = ?
			WHERE id = ?`,
			loggedAt.Format(time.RFC3339), loggedAt.Format(time.RFC3339), tpl.ID); err != nil {
			return fmt.Errorf("recording template use: %w", err)
		}

		return s.recomputeDailySummaryTx(ctx, tx, userID, date)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("logged template", "id", tpl.ID, "user_id", userID, "logs", len(logs))
	return logs, nil
}

func (s *Store) templateItems(ctx context.Context, templateID string) ([]*TemplateItem, error) {
	query := `
		SELECT id, template_id, food_type, food_id, portion, name_snapshot,
		       kcal, protein, fat, carbs, is_required, sort_order
		FROM template_item
		WHERE template_id = ?
		ORDER BY sort_order ASC
	`
	rows, err := s.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("querying template items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*TemplateItem
	for rows.Next() {
		var (
			item       TemplateItem
			isRequired int
		)
		if err := rows.Scan(
			&item.ID, &item.TemplateID, &item.FoodType, &item.FoodID, &item.Portion, &item.NameSnapshot,
			&item.Kcal, &item.Protein, &item.Fat, &item.Carbs,
			&isRequired, &item.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("scanning template item: %w", err)
		}
		item.IsRequired = isRequired != 0
		items = append(items, &item)
	}
	return items, rows.Err()
}

func scanTemplate(row rowScanner) (*MealTemplate, error) {
	var (
		tpl                   MealTemplate
		lastUsedAt, deletedAt sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&tpl.ID, &tpl.UserID, &tpl.Name, &tpl.Description,
		&tpl.TotalKcal, &tpl.TotalProtein, &tpl.TotalFat, &tpl.TotalCarbs,
		&tpl.UseCount, &lastUsedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning template: %w", err)
	}

	if tpl.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, err
	}
	if tpl.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if tpl.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if tpl.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &tpl, nil
}
