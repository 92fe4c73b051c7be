package versionstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newDBFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to create database file: %v", err)
	}
	db.Close()
	return path
}

func TestCurrent_UnmanagedDatabase(t *testing.T) {
	path := newDBFile(t)

	_, err := Current(context.Background(), path)
	if !errors.Is(err, ErrUnmanaged) {
		t.Fatalf("expected ErrUnmanaged, got %v", err)
	}
}

func TestCurrent_MissingFile(t *testing.T) {
	_, err := Current(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Fatal("expected an error for a missing database file")
	}
	if errors.Is(err, ErrUnmanaged) {
		t.Fatal("a missing file is not the same as an unmanaged database")
	}
}

func TestEnsure_CreatesVersionZero(t *testing.T) {
	ctx := context.Background()
	path := newDBFile(t)

	created, err := Ensure(ctx, path)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !created {
		t.Error("expected Ensure to report creation")
	}

	v, err := Current(ctx, path)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0, got %d", v)
	}

	// Second call is a no-op.
	created, err = Ensure(ctx, path)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if created {
		t.Error("expected second Ensure to be a no-op")
	}
}

func TestSet_Upserts(t *testing.T) {
	ctx := context.Background()
	path := newDBFile(t)
	if _, err := Ensure(ctx, path); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	for _, v := range []int{1, 2, 42} {
		if err := Set(ctx, path, v); err != nil {
			t.Fatalf("Set(%d) failed: %v", v, err)
		}
		got, err := Current(ctx, path)
		if err != nil {
			t.Fatalf("Current failed: %v", err)
		}
		if got != v {
			t.Errorf("expected version %d, got %d", v, got)
		}
	}

	// Exactly one row, always.
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM _meta`).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one version row, got %d", count)
	}
}

func TestMeta_SingleRowConstraint(t *testing.T) {
	ctx := context.Background()
	path := newDBFile(t)
	if _, err := Ensure(ctx, path); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO _meta (id, version) VALUES (2, 50)`); err == nil {
		t.Fatal("expected the CHECK constraint to reject a second row")
	}
}
