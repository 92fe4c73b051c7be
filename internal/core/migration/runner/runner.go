// Package runner orchestrates a migration run: version lookup, pending
// selection, and the per-script backup/execute/commit loop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/satishbabariya/fastmigrate/internal/core/migration/backup"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/catalog"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/script"
	"github.com/satishbabariya/fastmigrate/internal/core/migration/versionstore"
	"github.com/satishbabariya/fastmigrate/internal/debug"
	"github.com/satishbabariya/fastmigrate/pkg/backend"
)

// Options controls a migration run.
type Options struct {
	// Verbose emits debug-level progress via the debug logger.
	Verbose bool
	// DryRun reports the pending scripts without applying anything.
	DryRun bool
	// Interactive gates each script behind a confirmation prompt.
	Interactive bool
	// BackupBeforeRun forces one pre-run backup independent of the
	// per-script backups. Ignored when a backend adapter is active.
	BackupBeforeRun bool

	// Backend routes version storage and declarative execution through an
	// adapter instead of the built-in SQLite file backend. File-level
	// backups are skipped when set; adapters own their durability story.
	Backend backend.Backend
	// AsyncBackend is the deferred-result form of Backend. At most one of
	// the two may be set.
	AsyncBackend backend.AsyncBackend

	// Confirm decides the interactive gate for one script. Required when
	// Interactive is set and the caller has no terminal of its own.
	Confirm func(s catalog.Script) (bool, error)
	// OnApply is called before each script executes.
	OnApply func(s catalog.Script)
	// OnApplied is called after each script's version is committed.
	OnApplied func(s catalog.Script)
}

// Result describes what a run did, including partial progress when the run
// halted early.
type Result struct {
	StartVersion int
	FinalVersion int
	// Applied holds the scripts committed during this run, in order.
	Applied []catalog.Script
	// Pending holds the scripts selected for this run. In dry-run mode
	// nothing beyond selection happens.
	Pending []catalog.Script
	// Declined is set when the interactive gate stopped the run cleanly.
	Declined bool
	// RestoreAttempted and RestoreFailed report the rollback outcome after
	// a failed script under the file backend.
	RestoreAttempted bool
	RestoreFailed    bool
	// PreRunBackup is the path of the backup taken for BackupBeforeRun.
	PreRunBackup string
}

// Run applies all pending migration scripts to the database at dbPath,
// stopping at the first failure. The returned Result is non-nil even when
// the run halts, so callers can report partial progress.
func Run(ctx context.Context, dbPath, migrationsDir string, opts Options) (*Result, error) {
	if opts.Backend != nil && opts.AsyncBackend != nil {
		return nil, fmt.Errorf("at most one backend adapter may be supplied")
	}
	if opts.Verbose && !debug.Enabled() {
		debug.Init(true)
	}

	var bridge *backend.Bridge
	if opts.Backend != nil {
		bridge = backend.NewBridge(opts.Backend)
	} else if opts.AsyncBackend != nil {
		bridge = backend.NewAsyncBridge(opts.AsyncBackend)
	}

	if bridge != nil {
		// The adapter owns the target entirely. It may be a connection
		// string or DSN rather than a file path, so Connect is the only
		// existence check that applies.
		if err := bridge.Connect(ctx, dbPath); err != nil {
			return nil, fmt.Errorf("failed to connect backend: %w", err)
		}
		defer bridge.Close(ctx)
		if err := bridge.EnsureVersionStorage(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure version storage: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database does not exist at %s: %w", dbPath, err)
	}

	current, err := readVersion(ctx, dbPath, bridge)
	if err != nil {
		return nil, err
	}
	debug.Debug("resolved current version", "version", current, "db", dbPath)

	scripts, err := catalog.Discover(migrationsDir)
	if err != nil {
		return nil, err
	}
	pending := catalog.Pending(scripts, current)

	res := &Result{
		StartVersion: current,
		FinalVersion: current,
		Pending:      pending,
	}
	if len(pending) == 0 {
		debug.Debug("database is up to date", "version", current)
		return res, nil
	}
	if opts.DryRun {
		debug.Debug("dry run: skipping execution", "pending", len(pending))
		return res, nil
	}

	fileBackend := bridge == nil
	if opts.BackupBeforeRun && fileBackend {
		path, err := backup.Create(dbPath)
		if err != nil {
			return res, err
		}
		res.PreRunBackup = path
		debug.Debug("created pre-run backup", "path", path)
	}

	executor := script.NewExecutor()
	if bridge != nil {
		executor = script.NewExecutorWithBridge(bridge)
	}

	for _, s := range pending {
		if opts.Interactive {
			ok, err := confirm(opts, s)
			if err != nil {
				return res, fmt.Errorf("failed to read confirmation: %w", err)
			}
			if !ok {
				debug.Debug("migration declined, stopping", "ordinal", s.Ordinal)
				res.Declined = true
				return res, nil
			}
		}

		if opts.OnApply != nil {
			opts.OnApply(s)
		}
		debug.Debug("applying migration", "ordinal", s.Ordinal, "name", s.Name, "kind", s.Kind)

		var backupPath string
		if fileBackend {
			backupPath, err = backup.Create(dbPath)
			if err != nil {
				return res, err
			}
			debug.Debug("created backup", "path", backupPath)
		}

		if err := executor.Execute(ctx, dbPath, s); err != nil {
			return res, restoreAfterFailure(res, err, backupPath, dbPath, fileBackend)
		}

		// The version is committed only once the script's effects are
		// durable. A version-write failure is treated like a script
		// failure so the database and its version record move together.
		if err := writeVersion(ctx, dbPath, bridge, s.Ordinal); err != nil {
			return res, restoreAfterFailure(res, err, backupPath, dbPath, fileBackend)
		}

		res.Applied = append(res.Applied, s)
		res.FinalVersion = s.Ordinal
		if opts.OnApplied != nil {
			opts.OnApplied(s)
		}
		debug.Debug("migration committed", "version", s.Ordinal)
	}

	return res, nil
}

func confirm(opts Options, s catalog.Script) (bool, error) {
	if opts.Confirm == nil {
		return false, fmt.Errorf("interactive mode requires a Confirm callback")
	}
	return opts.Confirm(s)
}

func readVersion(ctx context.Context, dbPath string, bridge *backend.Bridge) (int, error) {
	if bridge != nil {
		v, err := bridge.ReadVersion(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read version from backend: %w", err)
		}
		return v, nil
	}
	return versionstore.Current(ctx, dbPath)
}

func writeVersion(ctx context.Context, dbPath string, bridge *backend.Bridge, version int) error {
	if bridge != nil {
		return bridge.WriteVersion(ctx, version)
	}
	return versionstore.Set(ctx, dbPath, version)
}

// restoreAfterFailure rolls the database file back to its pre-script state
// and folds the restore outcome into the returned error. Backends with an
// adapter own their rollback story, so only the file backend restores.
func restoreAfterFailure(res *Result, cause error, backupPath, dbPath string, fileBackend bool) error {
	if !fileBackend || backupPath == "" {
		return cause
	}
	res.RestoreAttempted = true
	if err := backup.Restore(backupPath, dbPath); err != nil {
		res.RestoreFailed = true
		return errors.Join(cause, err)
	}
	debug.Debug("database restored from backup", "path", backupPath)
	return cause
}
