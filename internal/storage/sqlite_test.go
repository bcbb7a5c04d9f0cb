package storage

import (
	"context"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(MemoryDSN)
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// TestMigrationsIdempotent runs OpenSQLite twice on the same directory and
// verifies the migration is not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	b1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	v1, err := b1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	b1.Close()

	b2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer b2.Close()

	v2, err := b2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	b := openTestSQLite(t)

	versions, err := b.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	b := openTestSQLite(t)

	var count int
	err := b.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_thread_logs_thread").Scan(&count)
	if err != nil {
		t.Fatalf("querying index: %v", err)
	}
	if count != 1 {
		t.Errorf("index idx_thread_logs_thread not found")
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_threads.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v; want 1, nil", v, err)
	}
	if _, err := parseMigrationVersion("threads.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestSQLiteSetFieldsUpserts(t *testing.T) {
	b := openTestSQLite(t)
	ctx := context.Background()

	if err := b.SetFields(ctx, "t1", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	if err := b.SetFields(ctx, "t1", map[string]string{"a": "3"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}

	got, err := b.GetFields(ctx, "t1")
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	if len(got) != 2 || got["a"] != "3" || got["b"] != "2" {
		t.Errorf("GetFields = %v, want a=3 b=2", got)
	}
}
