// ABOUTME: Frequency scoring for smart favorites ranking
// ABOUTME: Batches 7-day/30-day log counts into one grouped query per user

package store

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Frequency score weights. The score blends short-window use, long-window
// use, and recency of the favorite itself.
const (
	weightWeekCount  = 0.6
	weightMonthCount = 0.3
	weightRecency    = 0.1

	// scoreEpsilon is the tie threshold: score differences below it fall
	// back to the manual sort order.
	scoreEpsilon = 0.001
)

type foodUseCounts struct {
	week  int
	month int
}

// GetFavoritesByFrequency scores every alive favorite and returns the top
// limit, highest score first. Ties within scoreEpsilon go to the smaller
// sort_order. All per-food log counts come from a single grouped aggregate
// rather than one query per favorite.
func (s *Store) GetFavoritesByFrequency(ctx context.Context, userID string, limit int) ([]*ScoredFavorite, error) {
	favorites, err := s.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, nil
	}

	counts, err := s.favoriteUseCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	scored := make([]*ScoredFavorite, 0, len(favorites))
	for _, f := range favorites {
		c := counts[string(f.FoodType)+":"+f.FoodID]

		recency := 0.0
		if f.LastUsedAt != nil {
			daysSince := now.Sub(*f.LastUsedAt).Hours() / 24
			recency = math.Max(0, 1-daysSince/30)
		}

		score := weightWeekCount*float64(c.week) +
			weightMonthCount*float64(c.month) +
			weightRecency*recency
		scored = append(scored, &ScoredFavorite{Favorite: f, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if math.Abs(scored[i].Score-scored[j].Score) < scoreEpsilon {
			return scored[i].SortOrder < scored[j].SortOrder
		}
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// favoriteUseCounts aggregates alive-log counts over the trailing 7 and 30
// days, keyed by food type and id, in one query.
func (s *Store) favoriteUseCounts(ctx context.Context, userID string) (map[string]foodUseCounts, error) {
	// Windows are 7 and 30 calendar days including today.
	weekCutoff := s.now().UTC().AddDate(0, 0, -6).Format(DateLayout)
	monthCutoff := s.now().UTC().AddDate(0, 0, -29).Format(DateLayout)

	query := `
		SELECT food_type, food_id,
			SUM(CASE WHEN logged_date >= ? THEN 1 ELSE 0 END),
			COUNT(*)
		FROM food_log
		WHERE user_id = ? AND deleted_at IS NULL AND logged_date >= ?
		GROUP BY food_type, food_id
	`
	rows, err := s.db.QueryContext(ctx, query, weekCutoff, userID, monthCutoff)
	if err != nil {
		return nil, fmt.Errorf("aggregating favorite use counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]foodUseCounts)
	for rows.Next() {
		var (
			foodType, foodID string
			c                foodUseCounts
		)
		if err := rows.Scan(&foodType, &foodID, &c.week, &c.month); err != nil {
			return nil, fmt.Errorf("scanning use counts: %w", err)
		}
		counts[foodType+":"+foodID] = c
	}
	return counts, rows.Err()
}
