package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Section keys written by the training loop.
const (
	SectionStopper = "stopper_dict"
	SectionEpoch   = "epoch"
)

// Sentinel errors for the checkpoint package.
var (
	ErrIO     = errors.New("checkpoint: unreadable")
	ErrFormat = errors.New("checkpoint: unexpected format")
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	checkpoint_id TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	key         TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store is a keyed checkpoint container backed by a SQLite file. Each section
// is one row, so a reader can load a single section without touching the rest.
type Store struct {
	db   *sql.DB
	id   string
	path string
}

// #endregion store-struct

// #region constructor
// Create opens the checkpoint at path for writing, creating it if needed.
func Create(path string) (*Store, error) {
	name, err := fileURI(path, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	// Rollback journal keeps the checkpoint a single file that readers can open with mode=ro.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		db.Close()
		return nil, classify(path, fmt.Errorf("pragma: %w", err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, classify(path, fmt.Errorf("migrate: %w", err))
	}

	id := uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO meta (id, checkpoint_id, created_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init meta: %v", ErrIO, err)
	}
	if err := db.QueryRow(`SELECT checkpoint_id FROM meta WHERE id = 1`).Scan(&id); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: read meta: %v", ErrIO, err)
	}
	return &Store{db: db, id: id, path: path}, nil
}

// #endregion constructor

// #region accessors
// ID returns the identifier assigned when the checkpoint file was first created.
func (s *Store) ID() string {
	return s.id
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion accessors

// #region put
// Put JSON-encodes v and stores it under key, replacing any previous payload.
func (s *Store) Put(key string, v any) error {
	return s.PutMany(map[string]any{key: v})
}

// PutMany writes several sections in one transaction, so a reader never sees
// a stopper_dict from one save next to an epoch from another.
func (s *Store) PutMany(sections map[string]any) error {
	payloads := make(map[string][]byte, len(sections))
	for key, v := range sections {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal section %s: %w", key, err)
		}
		payloads[key] = data
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrIO, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, data := range payloads {
		_, err := tx.Exec(
			`INSERT INTO sections (key, payload, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			key, data, now,
		)
		if err != nil {
			return fmt.Errorf("%w: write section %s: %v", ErrIO, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

// #endregion put

// #region get
// Get decodes the section stored under key into v.
func (s *Store) Get(key string, v any) error {
	return getSection(s.db, s.path, key, v)
}

// Keys lists the stored section keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM sections`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sections: %v", ErrIO, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan key: %v", ErrIO, err)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, rows.Err()
}

// #endregion get

// #region read-section
// ReadSection opens the checkpoint at path read-only and decodes the single
// section stored under key into v. A missing file fails with ErrIO; a file
// that is not a checkpoint, or lacks the section, fails with ErrFormat.
func ReadSection(path, key string, v any) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}

	name, err := fileURI(path, "mode=ro")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer db.Close()

	return getSection(db, path, key, v)
}

// #endregion read-section

// #region helpers
// fileURI builds a SQLite URI filename for path. The path is made absolute
// and escaped so that '#', '?' and '%' in file names stay part of the name.
func fileURI(path, query string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: query}
	return u.String(), nil
}

func getSection(db *sql.DB, path, key string, v any) error {
	var payload []byte
	err := db.QueryRow(`SELECT payload FROM sections WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s has no %q section", ErrFormat, path, key)
	}
	if err != nil {
		return classify(path, fmt.Errorf("read section %s: %w", key, err))
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: decode section %s: %v", ErrFormat, key, err)
	}
	return nil
}

// classify maps a driver error to ErrIO or ErrFormat. SQLite reports a
// foreign file as "file is not a database" and a missing schema as
// "no such table"; both mean the artifact is not one of ours.
func classify(path string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"not a database", "no such table", "malformed", "file is encrypted"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrIO, path, err)
}

// #endregion helpers
