// ABOUTME: One-time import of the legacy flat JSON store into the relational schema
// ABOUTME: Promotes manual entries to custom foods, bulk-inserts logs, backfills summaries

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const legacyImportFlag = "legacy_import_done"

// Legacy blob filenames, one per durable-storage key of the old flat store.
const (
	legacyLogsFile   = "logs.json"
	legacyGoalsFile  = "goals.json"
	legacyRecentFile = "recent-items.json"
)

// MigrationResult reports the outcome of a legacy import. Per-item failures
// land in Errors while the migration as a whole still succeeds.
type MigrationResult struct {
	Success      bool
	MigratedLogs int
	CreatedFoods int
	Errors       []string
}

type legacyLog struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"` // "system" or "manual"
	FoodID   string          `json:"foodId"`
	Portion  string          `json:"portion"`
	Kcal     float64         `json:"kcal"`
	Protein  float64         `json:"protein"`
	Fat      float64         `json:"fat"`
	Carbs    float64         `json:"carbs"`
	LoggedAt json.RawMessage `json:"loggedAt"`
}

type legacyGoals struct {
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// Default goals for the migrated user when the legacy store carried none.
var defaultGoals = Goals{Kcal: 2000, Protein: 50, Carbs: 250, Fat: 65}

// ImportLegacyData runs the one-time migration from the legacy flat store in
// dir. Guarded by a persisted completion flag: a second call is a no-op
// reporting success with zero migrated logs. A missing legacy store is also
// a successful no-op. Individual bad entries are collected into the result's
// Errors and never abort the run.
func (s *Store) ImportLegacyData(ctx context.Context, dir string) (*MigrationResult, error) {
	result := &MigrationResult{}

	if done, _, err := s.getMeta(ctx, legacyImportFlag); err != nil {
		return nil, err
	} else if done == "true" {
		result.Success = true
		return result, nil
	}

	logs, found, err := readLegacyLogs(filepath.Join(dir, legacyLogsFile))
	if err != nil {
		// Unreadable legacy data is recorded, not fatal: the import
		// completes empty rather than blocking startup forever.
		result.Errors = append(result.Errors, err.Error())
	}

	// Any legacy blob counts as legacy data: a store holding only goals or
	// recent items still gets its user and recents migrated.
	if !found {
		found = legacyFileExists(dir, legacyGoalsFile) || legacyFileExists(dir, legacyRecentFile)
	}

	if found || err != nil {
		userID, uerr := s.ensureMigrationUser(ctx, filepath.Join(dir, legacyGoalsFile))
		if uerr != nil {
			return nil, uerr
		}

		s.importLegacyLogs(ctx, userID, logs, result)
		s.importLegacyRecents(ctx, userID, filepath.Join(dir, legacyRecentFile), result)
	}

	if err := s.Persist(ctx); err != nil {
		return nil, err
	}
	if err := s.setMeta(ctx, legacyImportFlag, "true"); err != nil {
		return nil, err
	}

	result.Success = true
	s.logger.Info("legacy import complete",
		"logs", result.MigratedLogs, "foods", result.CreatedFoods, "errors", len(result.Errors))
	return result, nil
}

func legacyFileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func readLegacyLogs(path string) ([]legacyLog, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("reading legacy logs: %w", err)
	}

	var logs []legacyLog
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, true, fmt.Errorf("parsing legacy logs: %w", err)
	}
	return logs, true, nil
}

// ensureMigrationUser returns the first profile, creating a local default
// user with migrated-or-default goals when none exists yet.
func (s *Store) ensureMigrationUser(ctx context.Context, goalsPath string) (string, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return users[0].ID, nil
	}

	goals := defaultGoals
	if data, err := os.ReadFile(goalsPath); err == nil {
		var lg legacyGoals
		if json.Unmarshal(data, &lg) == nil && lg.Kcal > 0 {
			goals = Goals{Kcal: int(lg.Kcal), Protein: lg.Protein, Carbs: lg.Carbs, Fat: lg.Fat}
		}
	}

	user, err := s.CreateUser(ctx, nil, nil, "Local User", goals)
	if err != nil {
		return "", fmt.Errorf("creating migration user: %w", err)
	}
	return user.ID, nil
}

func (s *Store) importLegacyLogs(ctx context.Context, userID string, logs []legacyLog, result *MigrationResult) {
	// Manual entries dedupe by normalized name within the run.
	customByName := make(map[string]string)
	affectedDates := make(map[string]struct{})

	for i, entry := range logs {
		log, err := s.buildMigratedLog(ctx, userID, entry, customByName, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("log %d (%s): %v", i, entry.Name, err))
			continue
		}

		if err := s.insertMigratedLog(ctx, log); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("log %d (%s): %v", i, entry.Name, err))
			continue
		}
		result.MigratedLogs++
		affectedDates[log.LoggedDate] = struct{}{}
	}

	// Backfill summaries once per touched date, after all inserts.
	for date := range affectedDates {
		if err := s.RecomputeDailySummary(ctx, userID, date); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("summary %s: %v", date, err))
		}
	}
}

// buildMigratedLog maps one legacy entry to a FoodLog, promoting free-text
// manual entries into deduplicated custom foods.
func (s *Store) buildMigratedLog(ctx context.Context, userID string, entry legacyLog, customByName map[string]string, result *MigrationResult) (*FoodLog, error) {
	loggedAt, err := parseLegacyTime(entry.LoggedAt, s.now().UTC())
	if err != nil {
		return nil, err
	}

	log := &FoodLog{
		UserID:       userID,
		NameSnapshot: strings.TrimSpace(entry.Name),
		Kcal:         int(entry.Kcal),
		Protein:      entry.Protein,
		Fat:          entry.Fat,
		Carbs:        entry.Carbs,
		LoggedAt:     loggedAt,
	}

	if entry.Type == "manual" || entry.FoodID == "" {
		foodID, err := s.promoteManualEntry(ctx, userID, entry, customByName, result)
		if err != nil {
			return nil, err
		}
		log.FoodType = FoodTypeCustom
		log.FoodID = foodID
		log.Portion = PortionSingle
		return log, nil
	}

	food, err := s.GetSystemFood(ctx, entry.FoodID)
	if err != nil {
		return nil, fmt.Errorf("unknown system food %s", entry.FoodID)
	}
	log.FoodType = FoodTypeSystem
	log.FoodID = food.ID
	log.Portion = Portion(entry.Portion)
	if _, ok := food.PortionMacros(log.Portion); !ok {
		log.Portion = PortionMedium
	}
	if log.NameSnapshot == "" {
		log.NameSnapshot = food.NameVI
	}
	return log, nil
}

// promoteManualEntry turns a free-text manual log into a reusable custom
// food, deduplicating by trimmed-lowercased name. Cap overflow is reported
// as an error string and skips the entry.
func (s *Store) promoteManualEntry(ctx context.Context, userID string, entry legacyLog, customByName map[string]string, result *MigrationResult) (string, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return "", errors.New("manual entry without a name")
	}
	normalized := strings.ToLower(name)

	if id, ok := customByName[normalized]; ok {
		return id, nil
	}
	if existing, err := s.findCustomFoodByName(ctx, userID, name); err == nil {
		customByName[normalized] = existing.ID
		return existing.ID, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	food, err := s.CreateCustomFood(ctx, &CustomFood{
		UserID:  userID,
		Name:    name,
		Kcal:    int(entry.Kcal),
		Protein: entry.Protein,
		Fat:     entry.Fat,
		Carbs:   entry.Carbs,
	})
	if errors.Is(err, ErrLimitReached) {
		return "", fmt.Errorf("custom food limit reached, entry skipped")
	}
	if err != nil {
		return "", err
	}

	result.CreatedFoods++
	customByName[normalized] = food.ID
	return food.ID, nil
}

// insertMigratedLog bulk-inserts without per-row summary recompute; the
// import backfills each affected date once at the end. The daily cap still
// holds.
func (s *Store) insertMigratedLog(ctx context.Context, log *FoodLog) error {
	log.ID = uuid.NewString()
	log.LoggedDate = log.LoggedAt.Format(DateLayout)

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
	res, err := s.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.FoodType, log.FoodID, log.Portion, log.NameSnapshot,
		log.Kcal, log.Protein, log.Fat, log.Carbs,
		log.LoggedDate, log.LoggedAt.UTC().Format(time.RFC3339),
		log.UserID, log.LoggedDate, MaxLogsPerDay,
	)
	if err != nil {
		return fmt.Errorf("inserting migrated log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("daily log limit reached for %s", log.LoggedDate)
	}
	return nil
}

// importLegacyRecents seeds recent searches from the legacy recent-items
// blob, oldest first so the newest terms survive the cap.
func (s *Store) importLegacyRecents(ctx context.Context, userID, path string, result *MigrationResult) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reading legacy recents: %v", err))
		return
	}

	var terms []string
	if err := json.Unmarshal(data, &terms); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("parsing legacy recents: %v", err))
		return
	}

	for _, term := range terms {
		if err := s.AddRecentSearch(ctx, userID, term); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("recent %q: %v", term, err))
		}
	}
}

// parseLegacyTime accepts the two timestamp encodings found in the legacy
// store: RFC3339 strings and epoch milliseconds.
func parseLegacyTime(raw json.RawMessage, fallback time.Time) (time.Time, error) {
	if len(raw) == 0 {
		return fallback, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", str, err)
		}
		return t.UTC(), nil
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %s", string(raw))
}
