package db

import (
	"database/sql"
	"fmt"
)

// localMigrations mirror the browser key-value storage of the field app:
// one row per key holding a JSON document.
var localMigrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT     PRIMARY KEY,
		value      TEXT     NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// serverMigrations is an ordered list of SQL statements for the backend.
var serverMigrations = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id         TEXT     PRIMARY KEY,
		name       TEXT     NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT     PRIMARY KEY,
		organization_id TEXT     NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		email           TEXT     NOT NULL UNIQUE,
		name            TEXT     NOT NULL DEFAULT '',
		role            TEXT     NOT NULL CHECK (role IN ('agent', 'supervisor', 'admin')),
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS visits (
		id              TEXT    PRIMARY KEY,
		organization_id TEXT    NOT NULL,
		agent_id        TEXT    NOT NULL,
		type            TEXT    NOT NULL CHECK (type IN ('routine', 'liraa')),
		document        TEXT    NOT NULL,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_org_created ON visits (organization_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_agent_created ON visits (agent_id, created_at DESC)`,
}

// columnMigration adds a column to an existing table.
type columnMigration struct {
	table, column, definition string
}

var serverColumnMigrations = []columnMigration{
	{"visits", "client_id", "TEXT NOT NULL DEFAULT ''"},
}

// serverIndexMigrations run once the added columns exist.
var serverIndexMigrations = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_client ON visits (organization_id, client_id) WHERE client_id != ''`,
}

// migrate runs all migrations for the schema in order.
func migrate(db *sql.DB, schema Schema) error {
	var statements []string
	var columns []columnMigration
	var indexes []string
	switch schema {
	case Local:
		statements = localMigrations
	case Server:
		statements = serverMigrations
		columns = serverColumnMigrations
		indexes = serverIndexMigrations
	default:
		return fmt.Errorf("unknown schema %s", schema)
	}

	for i, m := range statements {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	for _, cm := range columns {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	for i, m := range indexes {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("index migration %d: %w", i, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
