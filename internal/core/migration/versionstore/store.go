// Package versionstore reads and writes the single-row version record of
// the built-in SQLite file backend.
//
// A managed database carries a _meta table holding exactly one row, keyed
// by a constant id with a CHECK constraint so a second row can never be
// inserted. The version column is the ordinal of the highest successfully
// applied migration.
package versionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrUnmanaged reports a database that exists but carries no version
// record. Migrations refuse to run against such a database until it is
// explicitly enrolled.
var ErrUnmanaged = errors.New("database is not managed: no version record found")

// ErrAlreadyManaged reports an enrollment attempt against a database that
// already carries a version record.
var ErrAlreadyManaged = errors.New("database is already managed")

const createMetaSQL = `
	CREATE TABLE IF NOT EXISTS _meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL DEFAULT 0
	)
`

// Open returns a connection to the SQLite database at path. The file must
// already exist; the store never creates databases implicitly.
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Current returns the version of the managed database at path. A database
// without a _meta table yields ErrUnmanaged.
func Current(ctx context.Context, path string) (int, error) {
	db, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	managed, err := isManaged(ctx, db)
	if err != nil {
		return 0, err
	}
	if !managed {
		return 0, ErrUnmanaged
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT version FROM _meta WHERE id = 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return version, nil
}

// Set persists version as the current version of the database at path. The
// upsert targets the constant key, so concurrent readers under SQLite's
// transaction boundary never observe more than one row.
func Set(ctx context.Context, path string, version int) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO _meta (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version
	`, version)
	if err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	return nil
}

// Ensure creates the version record stamped at 0 when the database at path
// has none. It reports whether the record was created. Only enrollment and
// database creation call this; the runner never manages a database
// implicitly.
func Ensure(ctx context.Context, path string) (bool, error) {
	db, err := Open(path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	managed, err := isManaged(ctx, db)
	if err != nil {
		return false, err
	}
	if managed {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createMetaSQL); err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to create version storage: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _meta (id, version) VALUES (1, 0)`); err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to seed version storage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit version storage: %w", err)
	}
	return true, nil
}

func isManaged(ctx context.Context, db *sql.DB) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table' AND name = '_meta'
	`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect database: %w", err)
	}
	return true, nil
}
