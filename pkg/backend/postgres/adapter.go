// Package postgres implements the backend adapter hooks for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/satishbabariya/fastmigrate/pkg/backend"
)

// Adapter implements backend.Backend for PostgreSQL servers. The target
// passed to Connect is a connection string or URL understood by lib/pq.
type Adapter struct {
	db *sql.DB
}

var _ backend.Backend = (*Adapter)(nil)
var _ backend.Closer = (*Adapter)(nil)

// NewAdapter creates an unconnected PostgreSQL adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Connect opens a connection pool against the server.
func (a *Adapter) Connect(ctx context.Context, target string) error {
	db, err := sql.Open("postgres", target)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.db = db
	return nil
}

// EnsureVersionStorage creates the _meta table and seeds version 0.
func (a *Adapter) EnsureVersionStorage(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create version storage: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO _meta (id, version) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to seed version storage: %w", err)
	}
	return nil
}

// ReadVersion returns the stored version.
func (a *Adapter) ReadVersion(ctx context.Context) (int, error) {
	if a.db == nil {
		return 0, fmt.Errorf("database not connected")
	}
	var version int
	err := a.db.QueryRowContext(ctx, `SELECT version FROM _meta WHERE id = 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return version, nil
}

// WriteVersion upserts version into the single _meta row.
func (a *Adapter) WriteVersion(ctx context.Context, version int) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO _meta (id, version) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version
	`, version)
	if err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	return nil
}

// ExecuteScript runs a statement batch inside a single transaction.
func (a *Adapter) ExecuteScript(ctx context.Context, script string) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
