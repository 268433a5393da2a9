// ABOUTME: SQLite-backed Store with in-memory live database and durable snapshots
// ABOUTME: Handles open/restore/persist/close lifecycle, schema creation, and catalog seeding

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Store is the embedded relational store for the nutrition log. The live
// database is in-memory on a single connection; durability is an explicit
// Persist step that serializes the whole store to the snapshot path.
type Store struct {
	db           *sql.DB
	logger       *slog.Logger
	snapshotPath string

	// now is replaceable in tests; everything date-relative goes through it.
	now func() time.Time
}

// Manager owns the process-wide Store handle. Open memoizes initialization
// so concurrent first callers block on the same in-flight attempt instead
// of double-initializing.
type Manager struct {
	snapshotPath string
	seed         []SystemFood

	once  sync.Once
	store *Store
	err   error
}

// NewManager creates a manager for the given snapshot path and seed catalog.
// Nothing is opened until the first Open call.
func NewManager(snapshotPath string, seed []SystemFood) *Manager {
	return &Manager{snapshotPath: snapshotPath, seed: seed}
}

// Open returns the singleton store, initializing it on first call.
func (m *Manager) Open(ctx context.Context) (*Store, error) {
	m.once.Do(func() {
		m.store, m.err = Open(ctx, m.snapshotPath, m.seed)
	})
	return m.store, m.err
}

// Close closes the store if it was ever opened.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Open creates the in-memory store, restores the durable snapshot if one
// exists, and seeds the system food catalog on first run. A corrupt or
// unreadable snapshot is not fatal: the store starts fresh and logs a warning.
func Open(ctx context.Context, snapshotPath string, seed []SystemFood) (*Store, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(snapshotPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	s, err := openMemory(logger, snapshotPath)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(snapshotPath); statErr == nil {
		if err := s.restoreSnapshot(ctx, snapshotPath); err != nil {
			logger.Warn("snapshot unreadable, starting fresh", "path", snapshotPath, "error", err)
			s.db.Close()
			if s, err = openMemory(logger, snapshotPath); err != nil {
				return nil, err
			}
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		logger.Warn("snapshot not accessible, starting fresh", "path", snapshotPath, "error", statErr)
	}

	if err := s.seedCatalog(ctx, seed); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("seeding catalog: %w", err)
	}

	if err := s.setMeta(ctx, "schema_version", schemaVersion); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("recording schema version: %w", err)
	}

	logger.Info("store initialized", "snapshot", snapshotPath)
	return s, nil
}

// openMemory opens a fresh single-connection in-memory database with the
// schema applied. One connection means one serialized writer, which is the
// store's whole concurrency model.
func openMemory(logger *slog.Logger, snapshotPath string) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:           db,
		logger:       logger,
		snapshotPath: snapshotPath,
		now:          time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_profile (
			id                 TEXT PRIMARY KEY,
			email              TEXT UNIQUE,
			password           TEXT,
			display_name       TEXT NOT NULL,
			daily_kcal_goal    INTEGER NOT NULL,
			daily_protein_goal REAL NOT NULL,
			daily_carbs_goal   REAL NOT NULL,
			daily_fat_goal     REAL NOT NULL,
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS system_food (
			id                  TEXT PRIMARY KEY,
			name_vi             TEXT NOT NULL,
			name_en             TEXT NOT NULL,
			category            TEXT NOT NULL,
			serving_description TEXT NOT NULL DEFAULT '',
			confidence          REAL NOT NULL DEFAULT 1.0,
			kcal_s REAL NOT NULL, protein_s REAL NOT NULL, fat_s REAL NOT NULL, carbs_s REAL NOT NULL,
			fibre_s REAL NOT NULL DEFAULT 0, sugar_s REAL NOT NULL DEFAULT 0, sodium_s REAL NOT NULL DEFAULT 0,
			kcal_m REAL NOT NULL, protein_m REAL NOT NULL, fat_m REAL NOT NULL, carbs_m REAL NOT NULL,
			fibre_m REAL NOT NULL DEFAULT 0, sugar_m REAL NOT NULL DEFAULT 0, sodium_m REAL NOT NULL DEFAULT 0,
			kcal_l REAL NOT NULL, protein_l REAL NOT NULL, fat_l REAL NOT NULL, carbs_l REAL NOT NULL,
			fibre_l REAL NOT NULL DEFAULT 0, sugar_l REAL NOT NULL DEFAULT 0, sodium_l REAL NOT NULL DEFAULT 0,
			is_active           INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_system_food_category ON system_food(category);

		CREATE TABLE IF NOT EXISTS custom_food (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES user_profile(id),
			name       TEXT NOT NULL,
			kcal       REAL NOT NULL,
			protein    REAL NOT NULL,
			fat        REAL NOT NULL,
			carbs      REAL NOT NULL,
			fibre      REAL NOT NULL DEFAULT 0,
			sugar      REAL NOT NULL DEFAULT 0,
			sodium     REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			deleted_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_custom_food_user ON custom_food(user_id);

		CREATE TABLE IF NOT EXISTS food_log (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES user_profile(id),
			food_type     TEXT NOT NULL,
			food_id       TEXT NOT NULL,
			portion       TEXT NOT NULL,
			name_snapshot TEXT NOT NULL,
			kcal          INTEGER NOT NULL,
			protein       REAL NOT NULL,
			fat           REAL NOT NULL,
			carbs         REAL NOT NULL,
			logged_date   TEXT NOT NULL,
			logged_at     TEXT NOT NULL,
			deleted_at    TEXT,

			CHECK (food_type IN ('system', 'custom')),
			CHECK (portion IN ('S', 'M', 'L', 'single'))
		);

		CREATE INDEX IF NOT EXISTS idx_food_log_user_date ON food_log(user_id, logged_date);
		CREATE INDEX IF NOT EXISTS idx_food_log_user_food ON food_log(user_id, food_type, food_id);

		CREATE TABLE IF NOT EXISTS favorite (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES user_profile(id),
			food_type       TEXT NOT NULL,
			food_id         TEXT NOT NULL,
			sort_order      INTEGER NOT NULL,
			default_portion TEXT NOT NULL,
			use_count       INTEGER NOT NULL DEFAULT 0,
			last_used_at    TEXT,
			created_at      TEXT NOT NULL,
			deleted_at      TEXT,

			CHECK (food_type IN ('system', 'custom'))
		);

		CREATE INDEX IF NOT EXISTS idx_favorite_user ON favorite(user_id);

		CREATE TABLE IF NOT EXISTS recent_search (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES user_profile(id),
			search_term TEXT NOT NULL,
			searched_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_recent_search_user_time ON recent_search(user_id, searched_at DESC);

		CREATE TABLE IF NOT EXISTS daily_summary (
			user_id       TEXT NOT NULL REFERENCES user_profile(id),
			date          TEXT NOT NULL,
			total_kcal    INTEGER NOT NULL,
			total_protein REAL NOT NULL,
			total_fat     REAL NOT NULL,
			total_carbs   REAL NOT NULL,
			log_count     INTEGER NOT NULL,
			goal_kcal     INTEGER NOT NULL,
			goal_protein  REAL NOT NULL,
			updated_at    TEXT NOT NULL,

			PRIMARY KEY (user_id, date)
		);

		CREATE INDEX IF NOT EXISTS idx_daily_summary_date ON daily_summary(user_id, date DESC);

		CREATE TABLE IF NOT EXISTS meal_template (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES user_profile(id),
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			total_kcal    INTEGER NOT NULL DEFAULT 0,
			total_protein REAL NOT NULL DEFAULT 0,
			total_fat     REAL NOT NULL DEFAULT 0,
			total_carbs   REAL NOT NULL DEFAULT 0,
			use_count     INTEGER NOT NULL DEFAULT 0,
			last_used_at  TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			deleted_at    TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_meal_template_user ON meal_template(user_id);

		CREATE TABLE IF NOT EXISTS template_item (
			id            TEXT PRIMARY KEY,
			template_id   TEXT NOT NULL REFERENCES meal_template(id),
			food_type     TEXT NOT NULL,
			food_id       TEXT NOT NULL,
			portion       TEXT NOT NULL,
			name_snapshot TEXT NOT NULL,
			kcal          INTEGER NOT NULL,
			protein       REAL NOT NULL,
			fat           REAL NOT NULL,
			carbs         REAL NOT NULL,
			is_required   INTEGER NOT NULL DEFAULT 1,
			sort_order    INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_template_item_template ON template_item(template_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// snapshotTables lists every persisted table in parent-before-child order so
// restore satisfies foreign keys.
var snapshotTables = []string{
	"schema_meta",
	"user_profile",
	"system_food",
	"custom_food",
	"food_log",
	"favorite",
	"recent_search",
	"daily_summary",
	"meal_template",
	"template_item",
}

// restoreSnapshot copies every table from the durable snapshot file into the
// live in-memory database. Columns are intersected by name so a snapshot
// written by an older schema still restores; any read failure aborts the
// whole restore and the caller falls back to a fresh store.
func (s *Store) restoreSnapshot(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "ATTACH DATABASE ? AS snap", path); err != nil {
		return fmt.Errorf("attaching snapshot: %w", err)
	}
	defer func() { _, _ = s.db.Exec("DETACH DATABASE snap") }()

	for _, table := range snapshotTables {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM snap.sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&exists)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading snapshot catalog: %w", err)
		}

		cols, err := s.commonColumns(ctx, table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			continue
		}

		colList := strings.Join(cols, ", ")
		copyStmt := fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM snap.%s", table, colList, colList, table)
		if _, err := s.db.ExecContext(ctx, copyStmt); err != nil {
			return fmt.Errorf("restoring table %s: %w", table, err)
		}
	}

	s.logger.Info("restored snapshot", "path", path)
	return nil
}

// commonColumns returns the column names present in both the live table and
// its snapshot counterpart. Names come from pragma_table_info, never from
// user input.
func (s *Store) commonColumns(ctx context.Context, table string) ([]string, error) {
	liveCols, err := s.tableColumns(ctx, "main", table)
	if err != nil {
		return nil, err
	}
	snapCols, err := s.tableColumns(ctx, "snap", table)
	if err != nil {
		return nil, err
	}

	var cols []string
	for _, c := range liveCols {
		for _, sc := range snapCols {
			if c == sc {
				cols = append(cols, c)
				break
			}
		}
	}
	return cols, nil
}

func (s *Store) tableColumns(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.table_info(%s)", schema, table))
	if err != nil {
		return nil, fmt.Errorf("reading %s.%s columns: %w", schema, table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// seedCatalog inserts the system food catalog when the table is empty. The
// seed runs at most once per durable store lifetime; restored snapshots
// already carry their catalog and are left untouched.
func (s *Store) seedCatalog(ctx context.Context, seed []SystemFood) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM system_food").Scan(&count); err != nil {
		return fmt.Errorf("counting system foods: %w", err)
	}
	if count > 0 || len(seed) == 0 {
		return nil
	}

	if len(seed) > MaxSystemFoods {
		s.logger.Warn("seed catalog exceeds cap, truncating", "foods", len(seed), "cap", MaxSystemFoods)
		seed = seed[:MaxSystemFoods]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO system_food (
			id, name_vi, name_en, category, serving_description, confidence,
			kcal_s, protein_s, fat_s, carbs_s, fibre_s, sugar_s, sodium_s,
			kcal_m, protein_m, fat_m, carbs_m, fibre_m, sugar_m, sodium_m,
			kcal_l, protein_l, fat_l, carbs_l, fibre_l, sugar_l, sodium_l,
			is_active
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range seed {
		f := &seed[i]
		_, err := tx.ExecContext(ctx, query,
			f.ID, f.NameVI, f.NameEN, f.Category, f.ServingDescription, f.Confidence,
			f.Small.Kcal, f.Small.Protein, f.Small.Fat, f.Small.Carbs, f.Small.Fibre, f.Small.Sugar, f.Small.Sodium,
			f.Medium.Kcal, f.Medium.Protein, f.Medium.Fat, f.Medium.Carbs, f.Medium.Fibre, f.Medium.Sugar, f.Medium.Sodium,
			f.Large.Kcal, f.Large.Protein, f.Large.Fat, f.Large.Carbs, f.Large.Fibre, f.Large.Sugar, f.Large.Sodium,
			boolToInt(f.IsActive),
		)
		if err != nil {
			return fmt.Errorf("seeding food %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}

	s.logger.Info("seeded system food catalog", "foods", len(seed))
	return nil
}

// Persist serializes the live store to the snapshot path. The write goes to
// a temp file first and replaces the previous snapshot atomically, so a
// crash mid-flush never corrupts the durable copy.
func (s *Store) Persist(ctx context.Context) error {
	tmp := s.snapshotPath + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing stale temp snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		return fmt.Errorf("serializing store: %w", err)
	}

	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.logger.Debug("persisted store", "path", s.snapshotPath)
	return nil
}

// Close persists the store and releases the database handle.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Persist(ctx); err != nil {
		s.logger.Error("final persist failed", "error", err)
	}

	s.logger.Info("closing store")
	return s.db.Close()
}

// getMeta reads a schema_meta value; ok is false when the key is absent.
func (s *Store) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM schema_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO schema_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// today returns the current calendar day in UTC, the same convention
// logged_date rows are bucketed with.
func (s *Store) today() string {
	return s.now().UTC().Format(DateLayout)
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullTimeString formats an optional timestamp for storage.
func nullTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullTime parses an optional RFC3339 column value.
func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	return &t, nil
}
