// Package script executes a single migration script using the strategy its
// kind selects: declarative SQL batches against the database, external
// processes for everything else.
package script

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/fastmigrate/internal/core/migration/catalog"
	"github.com/satishbabariya/fastmigrate/pkg/backend"
)

// Reason classifies why a script failed.
type Reason string

const (
	// ReasonSQLError marks a declarative batch aborted by a statement error.
	ReasonSQLError Reason = "sql-error"
	// ReasonNonzeroExit marks an external process that exited nonzero.
	ReasonNonzeroExit Reason = "nonzero-exit"
)

// Error reports a failed migration script.
type Error struct {
	Ordinal int
	Name    string
	Reason  Reason
	Output  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("migration %04d (%s) failed (%s): %v", e.Ordinal, e.Name, e.Reason, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Executor dispatches scripts to their execution strategy. When a backend
// bridge is present, declarative scripts are routed through its execute
// hook instead of the built-in SQLite engine; process-invoked scripts are
// unaffected by adapter presence.
type Executor struct {
	bridge *backend.Bridge
}

// NewExecutor creates an executor for the built-in file backend.
func NewExecutor() *Executor {
	return &Executor{}
}

// NewExecutorWithBridge creates an executor that delegates declarative
// execution to an adapter bridge.
func NewExecutorWithBridge(bridge *backend.Bridge) *Executor {
	return &Executor{bridge: bridge}
}

// Execute runs one script against the database at dbPath. Any failure is
// reported as a *Error carrying the script's ordinal and diagnostics.
func (e *Executor) Execute(ctx context.Context, dbPath string, s catalog.Script) error {
	switch s.Kind {
	case catalog.KindSQL:
		return e.executeSQL(ctx, dbPath, s)
	case catalog.KindPython:
		return e.executeProcess(ctx, s, "python3", s.Path, dbPath)
	case catalog.KindShell:
		return e.executeProcess(ctx, s, "sh", s.Path, dbPath)
	default:
		return fmt.Errorf("unsupported script kind %q: %s", s.Kind, s.Name)
	}
}

// executeSQL runs the whole file as one transaction; any statement error
// rolls the batch back with no partial effect left visible.
func (e *Executor) executeSQL(ctx context.Context, dbPath string, s catalog.Script) error {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration script: %w", err)
	}

	if e.bridge != nil {
		if err := e.bridge.ExecuteScript(ctx, string(content)); err != nil {
			return &Error{Ordinal: s.Ordinal, Name: s.Name, Reason: ReasonSQLError, Err: err}
		}
		return nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		tx.Rollback()
		return &Error{Ordinal: s.Ordinal, Name: s.Name, Reason: ReasonSQLError, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Ordinal: s.Ordinal, Name: s.Name, Reason: ReasonSQLError, Err: err}
	}
	return nil
}

// executeProcess launches the script as a child process with the database
// path as its sole positional argument and waits for it to exit. Exit code
// 0 is success; anything else fails regardless of what the process printed.
func (e *Executor) executeProcess(ctx context.Context, s catalog.Script, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		return &Error{Ordinal: s.Ordinal, Name: s.Name, Reason: ReasonNonzeroExit, Output: output, Err: err}
	}
	return nil
}
