package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	name        TEXT,
	started_at  TEXT NOT NULL,
	ended_at    TEXT,
	success     INTEGER
);

CREATE TABLE IF NOT EXISTS metrics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       REAL NOT NULL,
	step        INTEGER,
	logged_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS params (
	run_id      TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT,
	PRIMARY KEY (run_id, key),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region sqlite-tracker
// SQLiteTracker stores runs, metrics and params in a local SQLite database.
// It is the offline backend: nothing leaves the machine.
type SQLiteTracker struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// NewSQLiteTracker opens (or creates) the tracking database at dbPath.
func NewSQLiteTracker(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteTracker{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

// DB returns the underlying *sql.DB for inspection.
func (t *SQLiteTracker) DB() *sql.DB {
	return t.db
}

// RunID returns the active run's ID, or "" outside a run.
func (t *SQLiteTracker) RunID() string {
	return t.runID
}

// #endregion sqlite-tracker

// #region lifecycle
// StartRun inserts a new run row with a fresh ID.
func (t *SQLiteTracker) StartRun(ctx context.Context, name string) error {
	if t.runID != "" {
		return ErrRunActive
	}
	id := uuid.New().String()
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, name, started_at) VALUES (?, ?, ?)`,
		id, nullIfEmpty(name), t.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	t.runID = id
	return nil
}

// EndRun marks the active run finished.
func (t *SQLiteTracker) EndRun(ctx context.Context, success bool) error {
	if t.runID == "" {
		return ErrRunNotStarted
	}
	_, err := t.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, success = ? WHERE run_id = ?`,
		t.now().Format(time.RFC3339Nano), success, t.runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	t.runID = ""
	return nil
}

// #endregion lifecycle

// #region log
// LogMetrics appends one row per numeric metric.
func (t *SQLiteTracker) LogMetrics(ctx context.Context, metrics map[string]any, step *int, prefix string) error {
	if t.runID == "" {
		return ErrRunNotStarted
	}
	values := numericOnly(metrics, prefix)
	now := t.now().Format(time.RFC3339Nano)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var stepPtr interface{}
	if step != nil {
		stepPtr = *step
	}
	for _, key := range sortedKeys(values) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (run_id, key, value, step, logged_at) VALUES (?, ?, ?, ?, ?)`,
			t.runID, key, values[key], stepPtr, now,
		)
		if err != nil {
			return fmt.Errorf("log metric %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// LogParams upserts params; a later value for the same key replaces the earlier one.
func (t *SQLiteTracker) LogParams(ctx context.Context, params map[string]any, prefix string) error {
	if t.runID == "" {
		return ErrRunNotStarted
	}
	flat := Flatten(params, prefix)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, key := range sortedKeys(flat) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
			t.runID, key, nullIfEmpty(stringify(flat[key])),
		)
		if err != nil {
			return fmt.Errorf("log param %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// #endregion log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
