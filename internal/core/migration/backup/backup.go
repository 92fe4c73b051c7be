// Package backup creates and restores byte-for-byte snapshots of the
// managed database file.
//
// Backups are never deleted by the engine: after a successful run they stay
// on disk per operator policy, and after a restore they remain as an audit
// artifact of the failed attempt.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Error reports a failed backup. A migration is never attempted against the
// file backend without a viable backup, so this aborts the run before the
// associated script executes.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to back up %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RestoreError reports a failed restore. This is the most severe condition
// the engine can hit: the database is left in an unknown state and its
// integrity is no longer guaranteed.
type RestoreError struct {
	Path string
	Err  error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("failed to restore %s: database integrity is no longer guaranteed: %v", e.Path, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// timestampLayout embeds an UTC timestamp in backup filenames. Nanosecond
// precision keeps per-script backups within one run from colliding.
const timestampLayout = "20060102-150405.000000000"

// now is stubbed in tests to pin backup names.
var now = time.Now

// Create copies the database at dbPath to a timestamped sibling file and
// returns the backup path.
func Create(dbPath string) (string, error) {
	backupPath := fmt.Sprintf("%s.%s.backup", dbPath, now().UTC().Format(timestampLayout))
	if err := copyFile(dbPath, backupPath); err != nil {
		return "", &Error{Path: dbPath, Err: err}
	}
	return backupPath, nil
}

// Restore overwrites dbPath with the backup's bytes. The backup is first
// copied to a temporary sibling and then renamed over the target, so a
// crash mid-restore leaves either the pre- or post-restore file, never a
// torn one. The backup itself stays on disk.
func Restore(backupPath, dbPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), filepath.Base(dbPath)+".restore-*")
	if err != nil {
		return &RestoreError{Path: dbPath, Err: err}
	}
	tmpPath := tmp.Name()

	src, err := os.Open(backupPath)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &RestoreError{Path: dbPath, Err: err}
	}
	_, copyErr := io.Copy(tmp, src)
	src.Close()
	if err := tmp.Close(); copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return &RestoreError{Path: dbPath, Err: copyErr}
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		os.Remove(tmpPath)
		return &RestoreError{Path: dbPath, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
