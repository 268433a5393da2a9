// ABOUTME: User profile repository with capacity-capped registration
// ABOUTME: Handles bcrypt credentials, goal updates, and account-deletion cascade

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when an email/password pair does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// CreateUser registers a profile. Email and password are optional: local
// household profiles carry neither and never authenticate. Returns
// ErrLimitReached once MaxUsers profiles exist and ErrDuplicateEmail on a
// reused email.
func (s *Store) CreateUser(ctx context.Context, email, password *string, displayName string, goals Goals) (*UserProfile, error) {
	var hash *string
	if password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		hs := string(h)
		hash = &hs
	}

	user := &UserProfile{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Goals:        goals,
		CreatedAt:    s.now().UTC(),
		UpdatedAt:    s.now().UTC(),
	}

	// Conditional insert keeps the cap check and the write in one statement.
	query := `
		INSERT INTO user_profile (
			id, email, password, display_name,
			daily_kcal_goal, daily_protein_goal, daily_carbs_goal, daily_fat_goal,
			created_at, updated_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM user_profile) < ?
	`
	res, err := s.db.ExecContext(ctx, query,
		user.ID,
		nullStringValue(user.Email),
		nullStringValue(user.PasswordHash),
		user.DisplayName,
		user.Goals.Kcal, user.Goals.Protein, user.Goals.Carbs, user.Goals.Fat,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
		MaxUsers,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		return nil, ErrLimitReached
	}

	s.logger.Debug("created user", "id", user.ID, "display_name", displayName)
	return user, nil
}

const userColumns = `
	id, email, password, display_name,
	daily_kcal_goal, daily_protein_goal, daily_carbs_goal, daily_fat_goal,
	created_at, updated_at
`

// GetUser retrieves a profile by ID. Returns ErrNotFound if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user_profile WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a registered profile by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user_profile WHERE email = ?`, email)
	return scanUser(row)
}

// VerifyCredentials checks an email/password pair and returns the matching
// profile. Local profiles (no password) never match.
func (s *Store) VerifyCredentials(ctx context.Context, email, password string) (*UserProfile, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers returns every profile ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM user_profile ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of profiles.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_profile").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// UpdateGoals replaces a user's daily goals. The new goals are snapshotted
// into daily summaries on their next recompute, not retroactively.
func (s *Store) UpdateGoals(ctx context.Context, userID string, goals Goals) error {
	query := `
		UPDATE user_profile
		SET daily_kcal_goal = ?, daily_protein_goal = ?, daily_carbs_goal = ?, daily_fat_goal = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		goals.Kcal, goals.Protein, goals.Carbs, goals.Fat,
		s.now().UTC().Format(time.RFC3339),
		userID,
	)
	if err != nil {
		return fmt.Errorf("updating goals: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated goals", "user_id", userID, "kcal", goals.Kcal)
	return nil
}

// DeleteUserCascade hard-deletes a profile and every row it owns. This is the
// only hard-delete path for user data; ordinary deletes are soft.
func (s *Store) DeleteUserCascade(ctx context.Context, userID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		childTables := []string{
			"template_item WHERE template_id IN (SELECT id FROM meal_template WHERE user_id = ?)",
			"meal_template WHERE user_id = ?",
			"daily_summary WHERE user_id = ?",
			"recent_search WHERE user_id = ?",
			"favorite WHERE user_id = ?",
			"food_log WHERE user_id = ?",
			"custom_food WHERE user_id = ?",
		}
		for _, clause := range childTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+clause, userID); err != nil {
				return fmt.Errorf("cascading delete: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM user_profile WHERE id = ?", userID)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking delete result: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("deleted user and owned data", "user_id", userID)
	return nil
}

// userGoals reads the current goals inside a transaction, for summary recompute.
func userGoals(ctx context.Context, tx *sql.Tx, userID string) (Goals, error) {
	var g Goals
	err := tx.QueryRowContext(ctx,
		`SELECT daily_kcal_goal, daily_protein_goal, daily_carbs_goal, daily_fat_goal
		 FROM user_profile WHERE id = ?`, userID).
		Scan(&g.Kcal, &g.Protein, &g.Carbs, &g.Fat)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	if err != nil {
		return g, fmt.Errorf("reading goals: %w", err)
	}
	return g, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*UserProfile, error) {
	var (
		u                    UserProfile
		email, password      sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&u.ID, &email, &password, &u.DisplayName,
		&u.Goals.Kcal, &u.Goals.Protein, &u.Goals.Carbs, &u.Goals.Fat,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if email.Valid {
		u.Email = &email.String
	}
	if password.Valid {
		u.PasswordHash = &password.String
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &u, nil
}

// nullStringValue converts an optional string for parameter binding.
func nullStringValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
