// Package db provides SQLite database initialization and access.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Schema selects which set of migrations a database receives.
type Schema int

const (
	// Local is the field device database: the visit list and sync queue.
	Local Schema = iota
	// Server is the backend database: organizations, users, keys and visits.
	Server
)

func (s Schema) String() string {
	switch s {
	case Local:
		return "local"
	case Server:
		return "server"
	default:
		return fmt.Sprintf("schema(%d)", int(s))
	}
}

// DefaultLocalPath returns the default field database path: ~/.config/vigia/field.db
func DefaultLocalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vigia", "field.db"), nil
}

// OpenLocal opens the field database at path.
func OpenLocal(path string) (*sql.DB, error) {
	return Open(path, Local)
}

// OpenServer opens the backend database at path.
func OpenServer(path string) (*sql.DB, error) {
	return Open(path, Server)
}

// Open opens (or creates) a SQLite database at the given path,
// enables WAL mode and foreign keys, and runs the schema's migrations.
func Open(path string, schema Schema) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := configure(db); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("%w (also failed to close: %v)", err, closeErr)
		}
		return nil, err
	}

	if err := migrate(db, schema); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("running %s migrations: %w (also failed to close: %v)", schema, err, closeErr)
		}
		return nil, fmt.Errorf("running %s migrations: %w", schema, err)
	}

	return db, nil
}

// configure sets SQLite pragmas for WAL mode and foreign keys.
func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("executing %s: %w", p, err)
		}
	}

	return nil
}
