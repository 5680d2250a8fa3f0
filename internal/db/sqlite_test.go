package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunMigrationsAppliesOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "001_a.sql"), "CREATE TABLE a (id TEXT PRIMARY KEY);")
	mustWrite(t, filepath.Join(dir, "002_b.sql"), "CREATE TABLE b (id TEXT PRIMARY KEY);")
	mustWrite(t, filepath.Join(dir, "README.md"), "not a migration")

	database, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	pending, err := PendingMigrations(ctx, database, dir)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected two pending migrations, got %v", pending)
	}

	applied, err := RunMigrations(ctx, database, dir)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_a.sql" || applied[1] != "002_b.sql" {
		t.Fatalf("expected both migrations in order, got %v", applied)
	}

	applied, err = RunMigrations(ctx, database, dir)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing on second run, got %v", applied)
	}

	if _, err := database.Exec(`INSERT INTO b (id) VALUES ('x')`); err != nil {
		t.Fatalf("migrated table missing: %v", err)
	}
}

func TestRunMigrationsStopsOnBrokenFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "001_ok.sql"), "CREATE TABLE ok (id TEXT);")
	mustWrite(t, filepath.Join(dir, "002_broken.sql"), "CREATE TABLE (;")

	database, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	applied, err := RunMigrations(ctx, database, dir)
	if err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if len(applied) != 1 || applied[0] != "001_ok.sql" {
		t.Fatalf("expected the first migration to be applied, got %v", applied)
	}

	pending, err := PendingMigrations(ctx, database, dir)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0] != "002_broken.sql" {
		t.Fatalf("expected the broken migration to stay pending, got %v", pending)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
