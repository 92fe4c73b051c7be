// Package fastmigrate is the programmatic surface of the migration engine.
//
// It tracks the schema version of a single embedded SQLite database and
// brings it forward by running an ordered, append-only sequence of
// migration scripts. Each script is applied under a backup/restore
// umbrella: the database file is snapshotted before the script runs and
// restored verbatim if it fails. A pluggable backend adapter can redirect
// version storage and declarative execution to a different storage engine.
package fastmigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/fastmigrate/internal/core/migration/backup"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/catalog"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/runner"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/script"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/versionstore"
	"github.com/satishbabariya/fastmigrate/internal/debug"
	"github.com/satishbabariya/fastmigrate/internal/version"
	"github.com/satishbabariya/fastmigrate/pkg/backend"
)

// ErrUnmanaged reports a database that exists but carries no version
// record. Enroll it before running migrations.
var ErrUnmanaged = versionstore.ErrUnmanaged

// ErrAlreadyManaged reports an enrollment attempt against a database that
// already carries a version record.
var ErrAlreadyManaged = versionstore.ErrAlreadyManaged

// ScriptError is the typed failure of a single migration script.
type ScriptError = script.Error

// RestoreError is the typed failure of a post-script restore; the database
// is left in an unknown state.
type RestoreError = backup.RestoreError

// Options controls RunMigrations.
type Options struct {
	// Verbose emits debug-level progress to stderr.
	Verbose bool
	// DryRun reports pending scripts without applying anything.
	DryRun bool
	// Interactive gates each script behind the Confirm callback.
	Interactive bool
	// BackupBeforeRun takes one extra backup before the first script.
	BackupBeforeRun bool

	// Backend redirects version storage and declarative execution to an
	// adapter. AsyncBackend is its deferred-result form; set at most one.
	Backend      backend.Backend
	AsyncBackend backend.AsyncBackend

	// Confirm decides the interactive gate for one script, identified by
	// ordinal and filename. Required when Interactive is set.
	Confirm func(ordinal int, name string) (bool, error)
	// OnApply is called before each script executes; OnApplied after its
	// version is committed. Useful for progress reporting.
	OnApply   func(ordinal int, name string)
	OnApplied func(ordinal int, name string)
}

// ScriptInfo describes one discovered migration script.
type ScriptInfo struct {
	Ordinal int
	Name    string
	Kind    string
}

// Result reports what a run did. All fields are valid even when the run
// halted early.
type Result struct {
	StartVersion int
	FinalVersion int
	Applied      int
	Declined     bool
	// Pending holds the scripts selected for the run, ascending. In
	// dry-run mode these are reported without being applied.
	Pending []ScriptInfo
}

// Versions pairs the tool version with a database's stored version.
type Versions struct {
	Tool     string
	Database int
}

// RunMigrations applies all pending migration scripts under migrationsDir
// to the database at dbPath, in ascending ordinal order, stopping at the
// first failure. A nil error means every pending script was applied (or
// nothing was pending).
func RunMigrations(ctx context.Context, dbPath, migrationsDir string, opts Options) (*Result, error) {
	debug.Init(opts.Verbose)

	runOpts := runner.Options{
		Verbose:         opts.Verbose,
		DryRun:          opts.DryRun,
		Interactive:     opts.Interactive,
		BackupBeforeRun: opts.BackupBeforeRun,
		Backend:         opts.Backend,
		AsyncBackend:    opts.AsyncBackend,
	}
	if opts.Confirm != nil {
		confirm := opts.Confirm
		runOpts.Confirm = func(s catalog.Script) (bool, error) {
			return confirm(s.Ordinal, s.Name)
		}
	}
	if opts.OnApply != nil {
		onApply := opts.OnApply
		runOpts.OnApply = func(s catalog.Script) { onApply(s.Ordinal, s.Name) }
	}
	if opts.OnApplied != nil {
		onApplied := opts.OnApplied
		runOpts.OnApplied = func(s catalog.Script) { onApplied(s.Ordinal, s.Name) }
	}

	res, err := runner.Run(ctx, dbPath, migrationsDir, runOpts)
	if res == nil {
		return nil, err
	}
	out := &Result{
		StartVersion: res.StartVersion,
		FinalVersion: res.FinalVersion,
		Applied:      len(res.Applied),
		Declined:     res.Declined,
	}
	for _, s := range res.Pending {
		out.Pending = append(out.Pending, ScriptInfo{Ordinal: s.Ordinal, Name: s.Name, Kind: string(s.Kind)})
	}
	return out, err
}

// CreateDatabase creates a managed SQLite database at path, stamped at
// version 0, and returns its version. An existing managed database is left
// untouched and its current version returned; an existing unmanaged
// database fails with ErrUnmanaged.
func CreateDatabase(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err == nil {
		return versionstore.Current(ctx, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, fmt.Errorf("failed to create database: %w", err)
	}
	// Ping forces the file into existence.
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return 0, fmt.Errorf("failed to create database: %w", err)
	}
	db.Close()

	if _, err := versionstore.Ensure(ctx, path); err != nil {
		return 0, err
	}
	return 0, nil
}

// EnrollDatabase brings an existing, unmanaged database under version
// management: it snapshots the current schema into an initialization script
// named 0001-initial-schema.sql in migrationsDir, creates the version
// storage, and stamps version 1 so the snapshot counts as applied. The
// migrations directory must not already contain migration scripts.
func EnrollDatabase(ctx context.Context, dbPath, migrationsDir string) (int, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return 0, fmt.Errorf("database does not exist at %s: %w", dbPath, err)
	}

	_, err := versionstore.Current(ctx, dbPath)
	if err == nil {
		return 0, ErrAlreadyManaged
	}
	if !errors.Is(err, versionstore.ErrUnmanaged) {
		return 0, err
	}

	existing, err := catalog.Discover(migrationsDir)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, fmt.Errorf("enrollment requires an empty migrations directory, found %d scripts in %s", len(existing), migrationsDir)
	}

	snapshot, err := schemaSnapshot(ctx, dbPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	initScript := filepath.Join(migrationsDir, "0001-initial-schema.sql")
	if err := os.WriteFile(initScript, []byte(snapshot), 0644); err != nil {
		return 0, fmt.Errorf("failed to write initialization script: %w", err)
	}

	if _, err := versionstore.Ensure(ctx, dbPath); err != nil {
		return 0, err
	}
	if err := versionstore.Set(ctx, dbPath, 1); err != nil {
		return 0, err
	}
	return 1, nil
}

// BackupDatabase takes a timestamped backup of the database file and
// returns the backup path.
func BackupDatabase(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("database does not exist at %s: %w", path, err)
	}
	return backup.Create(path)
}

// CurrentVersions returns the tool version alongside the stored version of
// the database at dbPath.
func CurrentVersions(ctx context.Context, dbPath string) (*Versions, error) {
	tool, err := version.Tool()
	if err != nil {
		return nil, err
	}
	dbVersion, err := versionstore.Current(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return &Versions{Tool: tool.String(), Database: dbVersion}, nil
}

// schemaSnapshot reproduces the database's current schema as a SQL batch.
func schemaSnapshot(ctx context.Context, dbPath string) (string, error) {
	db, err := versionstore.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("failed to read schema: %w", err)
		}
		stmts = append(stmts, stmt+";")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}

	header := "-- Initial schema captured at enrollment.\n"
	if len(stmts) == 0 {
		return header + "-- The database had no schema objects.\n", nil
	}
	return header + strings.Join(stmts, "\n") + "\n", nil
}
