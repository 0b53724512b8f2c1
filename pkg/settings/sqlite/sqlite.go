// Package sqlite keeps many settings files in one SQLite database, each
// settings name acting as a namespace of keys.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kalambet/typedprefs/pkg/settings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a SQLite database and opens settings stores inside it.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) prefs.db in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*DB, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "prefs.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: an in-memory database lives and dies with it, and it
	// avoids "database is locked" between our own writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (d *DB) migrate() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := d.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (d *DB) AppliedMigrations() ([]int, error) {
	rows, err := d.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Names lists every settings file stored in the database.
func (d *DB) Names() ([]string, error) {
	rows, err := d.db.Query("SELECT name FROM preference_files ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Open registers the named settings file and returns a store bound to it.
// Closing the store leaves the database open.
func (d *DB) Open(name string) (settings.Store, error) {
	if err := settings.ValidateName(name); err != nil {
		return nil, err
	}
	_, err := d.db.Exec(`
		INSERT INTO preference_files (name, revision, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, uuid.NewString(), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("registering settings file %q: %w", name, err)
	}
	return &Store{db: d, name: name}, nil
}

// Store is one settings namespace inside a DB.
type Store struct {
	db     *DB
	name   string
	closed atomic.Bool
}

func (s *Store) Name() string { return s.name }

func (s *Store) All() (map[string]settings.Value, error) {
	if s.closed.Load() {
		return nil, settings.ErrClosed
	}
	rows, err := s.db.db.Query("SELECT key, kind, value FROM preferences WHERE file = ?", s.name)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.name, err)
	}
	defer rows.Close()

	result := make(map[string]settings.Value)
	for rows.Next() {
		var key, kindName, text string
		if err := rows.Scan(&key, &kindName, &text); err != nil {
			return nil, err
		}
		kind, err := settings.ParseKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		v, err := settings.Parse(kind, text)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		result[key] = v
	}
	return result, rows.Err()
}

func (s *Store) Revision() (string, error) {
	if s.closed.Load() {
		return "", settings.ErrClosed
	}
	var rev string
	err := s.db.db.QueryRow("SELECT revision FROM preference_files WHERE name = ?", s.name).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return rev, err
}

func (s *Store) Edit() settings.Editor {
	return &editor{store: s}
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

type editor struct {
	settings.Batch
	store *Store
}

// Commit replays the batch inside one transaction and stamps a new revision.
func (e *editor) Commit() error {
	s := e.store
	if s.closed.Load() {
		return settings.ErrClosed
	}

	tx, err := s.db.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	for _, op := range e.Ops() {
		switch {
		case op.IsPut():
			_, err = tx.Exec(`
				INSERT INTO preferences (file, key, kind, value, updated_at) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(file, key) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
				s.name, op.Key, op.Value.Kind().String(), op.Value.Text(), ts,
			)
		case op.IsRemove():
			_, err = tx.Exec("DELETE FROM preferences WHERE file = ? AND key = ?", s.name, op.Key)
		case op.IsClear():
			_, err = tx.Exec("DELETE FROM preferences WHERE file = ?", s.name)
		}
		if err != nil {
			return fmt.Errorf("applying edit to %q: %w", s.name, err)
		}
	}

	if _, err := tx.Exec("UPDATE preference_files SET revision = ?, updated_at = ? WHERE name = ?", uuid.NewString(), ts, s.name); err != nil {
		return fmt.Errorf("updating revision of %q: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edits to %q: %w", s.name, err)
	}
	e.Reset()
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
