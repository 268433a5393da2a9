// ABOUTME: Recent search repository: capped per-user FIFO of distinct terms
// ABOUTME: Re-searching a term refreshes its timestamp instead of duplicating

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddRecentSearch records a search term. The term is trimmed; an existing
// identical term (case-insensitive) has its timestamp refreshed instead of
// inserting a duplicate, and the list is pruned to the MaxRecentSearches
// most recent entries. Empty terms are ignored.
func (s *Store) AddRecentSearch(ctx context.Context, userID, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	searchedAt := s.now().UTC().Format(time.RFC3339Nano)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		// NOCASE only folds ASCII, so match the existing term in Go where
		// Vietnamese letters fold too.
		existingID, err := findSearchTermTx(ctx, tx, userID, term)
		if err != nil {
			return err
		}
		if existingID != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE recent_search SET searched_at = ? WHERE id = ?`,
				searchedAt, existingID); err != nil {
				return fmt.Errorf("refreshing search term: %w", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recent_search (id, user_id, search_term, searched_at)
			VALUES (?, ?, ?, ?)`,
			uuid.NewString(), userID, term, searchedAt); err != nil {
			return fmt.Errorf("inserting search term: %w", err)
		}

		// Keep only the newest MaxRecentSearches rows.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM recent_search
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM recent_search
				WHERE user_id = ?
				ORDER BY searched_at DESC, id DESC
				LIMIT ?
			)`,
			userID, userID, MaxRecentSearches); err != nil {
			return fmt.Errorf("pruning search terms: %w", err)
		}
		return nil
	})
}

func findSearchTermTx(ctx context.Context, tx *sql.Tx, userID, term string) (string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, search_term FROM recent_search WHERE user_id = ?`, userID)
	if err != nil {
		return "", fmt.Errorf("querying search terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, existing string
		if err := rows.Scan(&id, &existing); err != nil {
			return "", fmt.Errorf("scanning search term: %w", err)
		}
		if strings.EqualFold(existing, term) {
			return id, nil
		}
	}
	return "", rows.Err()
}

// ListRecentSearches returns the user's search terms, most recent first.
func (s *Store) ListRecentSearches(ctx context.Context, userID string) ([]*RecentSearch, error) {
	query := `
		SELECT id, user_id, search_term, searched_at
		FROM recent_search
		WHERE user_id = ?
		ORDER BY searched_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, MaxRecentSearches)
	if err != nil {
		return nil, fmt.Errorf("querying recent searches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var searches []*RecentSearch
	for rows.Next() {
		var (
			r          RecentSearch
			searchedAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SearchTerm, &searchedAt); err != nil {
			return nil, fmt.Errorf("scanning recent search: %w", err)
		}
		if r.SearchedAt, err = time.Parse(time.RFC3339Nano, searchedAt); err != nil {
			return nil, fmt.Errorf("parsing searched_at: %w", err)
		}
		searches = append(searches, &r)
	}
	return searches, rows.Err()
}

// ClearRecentSearches removes every search term for the user.
func (s *Store) ClearRecentSearches(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recent_search WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing recent searches: %w", err)
	}
	return nil
}
