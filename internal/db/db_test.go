package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func mustOpen(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustInit(t *testing.T) *sql.DB {
	t.Helper()
	db := mustOpen(t)
	if err := Initialize(db); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return db
}

func TestOpenSetsWALMode(t *testing.T) {
	db := mustOpen(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	// In-memory databases report "memory" since WAL requires a file.
	if mode != "wal" && mode != "memory" {
		t.Errorf("journal_mode = %q, want wal or memory", mode)
	}
}

func TestOpenSetsBusyTimeout(t *testing.T) {
	db := mustOpen(t)

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("querying busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "issuesnap.db")

	db, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("OpenAndMigrate failed: %v", err)
	}
	defer db.Close()

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("schema_version = %d, want %d", v, currentSchemaVersion)
	}
}

func TestInitializeCreatesAllTables(t *testing.T) {
	db := mustInit(t)

	for _, table := range []string{"meta", "load_runs"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestInitializeSetsSchemaVersion(t *testing.T) {
	db := mustInit(t)

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("schema_version = %d, want 1", v)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := mustInit(t)

	if err := Initialize(db); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("schema_version = %d after double init, want 1", v)
	}
}

func TestMigrateNoOpAtLatestVersion(t *testing.T) {
	db := mustInit(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("schema_version = %d after Migrate, want 1", v)
	}
}

func TestInitializeCreatesLoadRunsIndex(t *testing.T) {
	db := mustInit(t)

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_load_runs_table'",
	).Scan(&name)
	if err != nil {
		t.Errorf("idx_load_runs_table should exist after Initialize: %v", err)
	}
}

func TestMigrateMissingVersion(t *testing.T) {
	db := mustInit(t)

	if _, err := db.Exec(`UPDATE meta SET value = '0' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("resetting schema version: %v", err)
	}

	if err := Migrate(db); err == nil {
		t.Fatal("expected error for missing migration 1, got nil")
	}
}
