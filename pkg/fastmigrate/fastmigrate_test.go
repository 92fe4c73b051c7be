package fastmigrate

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execSQL(t *testing.T, dbPath, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("failed to execute %q: %v", stmt, err)
	}
}

func newBareDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to create database file: %v", err)
	}
	db.Close()
	for _, stmt := range stmts {
		execSQL(t, path, stmt)
	}
	return path
}

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create migrations directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}
}

func TestCreateDatabase_New(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")

	v, err := CreateDatabase(ctx, path)
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected a fresh database at version 0, got %d", v)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
}

func TestCreateDatabase_ExistingManagedIsUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-a.sql", "CREATE TABLE a (id INTEGER);")
	if _, err := RunMigrations(ctx, path, migrations, Options{}); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	v, err := CreateDatabase(ctx, path)
	if err != nil {
		t.Fatalf("CreateDatabase on existing database failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected the existing version 1 back, got %d", v)
	}
}

func TestCreateDatabase_ExistingUnmanaged(t *testing.T) {
	ctx := context.Background()
	path := newBareDB(t)

	_, err := CreateDatabase(ctx, path)
	if !errors.Is(err, ErrUnmanaged) {
		t.Fatalf("expected ErrUnmanaged, got %v", err)
	}
}

func TestEnrollDatabase(t *testing.T) {
	ctx := context.Background()
	path := newBareDB(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)",
		"CREATE INDEX idx_users_email ON users (email)",
	)
	migrations := filepath.Join(t.TempDir(), "migrations")

	v, err := EnrollDatabase(ctx, path, migrations)
	if err != nil {
		t.Fatalf("EnrollDatabase failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected enrollment to stamp version 1, got %d", v)
	}

	snapshot, err := os.ReadFile(filepath.Join(migrations, "0001-initial-schema.sql"))
	if err != nil {
		t.Fatalf("initialization script was not written: %v", err)
	}
	for _, want := range []string{"CREATE TABLE users", "CREATE INDEX idx_users_email"} {
		if !strings.Contains(string(snapshot), want) {
			t.Errorf("snapshot is missing %q:\n%s", want, snapshot)
		}
	}

	// The snapshot counts as applied: a run right away has nothing to do.
	res, err := RunMigrations(ctx, path, migrations, Options{})
	if err != nil {
		t.Fatalf("RunMigrations after enrollment failed: %v", err)
	}
	if len(res.Pending) != 0 {
		t.Errorf("expected nothing pending after enrollment, got %d", len(res.Pending))
	}
}

func TestEnrollDatabase_SnapshotRecreatesSchema(t *testing.T) {
	ctx := context.Background()
	path := newBareDB(t, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	migrations := filepath.Join(t.TempDir(), "migrations")

	if _, err := EnrollDatabase(ctx, path, migrations); err != nil {
		t.Fatalf("EnrollDatabase failed: %v", err)
	}

	// Replaying the snapshot against a fresh database rebuilds the schema.
	fresh := filepath.Join(t.TempDir(), "fresh.db")
	if _, err := CreateDatabase(ctx, fresh); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	snapshot, err := os.ReadFile(filepath.Join(migrations, "0001-initial-schema.sql"))
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	execSQL(t, fresh, string(snapshot))
	execSQL(t, fresh, "INSERT INTO notes (body) VALUES ('works')")
}

func TestEnrollDatabase_AlreadyManaged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	_, err := EnrollDatabase(ctx, path, filepath.Join(t.TempDir(), "migrations"))
	if !errors.Is(err, ErrAlreadyManaged) {
		t.Fatalf("expected ErrAlreadyManaged, got %v", err)
	}
}

func TestEnrollDatabase_RefusesNonEmptyMigrationsDir(t *testing.T) {
	ctx := context.Background()
	path := newBareDB(t, "CREATE TABLE t (id INTEGER)")
	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-existing.sql", "SELECT 1;")

	_, err := EnrollDatabase(ctx, path, migrations)
	if err == nil {
		t.Fatal("expected enrollment to refuse a populated migrations directory")
	}
}

func TestEnrollDatabase_MissingDatabase(t *testing.T) {
	_, err := EnrollDatabase(context.Background(), filepath.Join(t.TempDir(), "missing.db"), t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a missing database")
	}
}

func TestBackupDatabase(t *testing.T) {
	path := newBareDB(t, "CREATE TABLE t (id INTEGER)")

	backupPath, err := BackupDatabase(path)
	if err != nil {
		t.Fatalf("BackupDatabase failed: %v", err)
	}
	original, _ := os.ReadFile(path)
	copied, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if string(original) != string(copied) {
		t.Error("backup is not byte-identical to the database")
	}
}

func TestBackupDatabase_Missing(t *testing.T) {
	_, err := BackupDatabase(filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Fatal("expected an error for a missing database")
	}
}

func TestCurrentVersions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	v, err := CurrentVersions(ctx, path)
	if err != nil {
		t.Fatalf("CurrentVersions failed: %v", err)
	}
	if v.Tool == "" {
		t.Error("expected a tool version")
	}
	if v.Database != 0 {
		t.Errorf("expected database version 0, got %d", v.Database)
	}
}

func TestRunMigrations_EndToEnd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-create-users.sql",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);")
	writeMigration(t, migrations, "0002-add-posts.sql",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));")

	var order []string
	res, err := RunMigrations(ctx, path, migrations, Options{
		OnApplied: func(ordinal int, name string) { order = append(order, name) },
	})
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if res.FinalVersion != 2 || res.Applied != 2 {
		t.Errorf("expected 2 scripts applied up to version 2, got applied=%d final=%d", res.Applied, res.FinalVersion)
	}
	want := []string{"0001-create-users.sql", "0002-add-posts.sql"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected apply order %v, got %v", want, order)
		}
	}

	// A second run is a no-op.
	res, err = RunMigrations(ctx, path, migrations, Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res.Applied != 0 || res.FinalVersion != 2 {
		t.Errorf("expected an up-to-date no-op, got applied=%d final=%d", res.Applied, res.FinalVersion)
	}
}

func TestRunMigrations_DryRunReportsPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-a.sql", "CREATE TABLE a (id INTEGER);")
	writeMigration(t, migrations, "0002-b.py", "import sys\n")

	res, err := RunMigrations(ctx, path, migrations, Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if res.Applied != 0 {
		t.Error("dry run must not apply anything")
	}
	if len(res.Pending) != 2 {
		t.Fatalf("expected 2 pending scripts, got %d", len(res.Pending))
	}
	if res.Pending[0].Kind != "sql" || res.Pending[1].Kind != "python" {
		t.Errorf("unexpected pending kinds: %+v", res.Pending)
	}
}

func TestRunMigrations_ScriptFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-bad.sql", "INSERT INTO nope (id) VALUES (1);")

	res, err := RunMigrations(ctx, path, migrations, Options{})
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected ScriptError, got %v", err)
	}
	if scriptErr.Ordinal != 1 {
		t.Errorf("expected failure at ordinal 1, got %d", scriptErr.Ordinal)
	}
	if res.FinalVersion != 0 {
		t.Errorf("expected version to stay 0, got %d", res.FinalVersion)
	}
}

func TestRunMigrations_InteractiveDecline(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	if _, err := CreateDatabase(ctx, path); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	migrations := filepath.Join(t.TempDir(), "migrations")
	writeMigration(t, migrations, "0001-a.sql", "CREATE TABLE a (id INTEGER);")

	res, err := RunMigrations(ctx, path, migrations, Options{
		Interactive: true,
		Confirm:     func(ordinal int, name string) (bool, error) { return false, nil },
	})
	if err != nil {
		t.Fatalf("a declined run must not error: %v", err)
	}
	if !res.Declined {
		t.Error("expected Declined to be set")
	}
	if res.Applied != 0 {
		t.Error("a declined script must not run")
	}
}
