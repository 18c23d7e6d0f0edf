package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/weddingcue-core/migrations"
)

var testMigrations = fstest.MapFS{
	"sql/20260101_000000_users.up.sql":   {Data: []byte("CREATE TABLE test_users (id TEXT PRIMARY KEY);")},
	"sql/20260101_000000_users.down.sql": {Data: []byte("DROP TABLE test_users;")},
	"sql/20260102_000000_notes.up.sql":   {Data: []byte("CREATE TABLE test_notes (id TEXT PRIMARY KEY);")},
	"sql/README.md":                      {Data: []byte("not a migration")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count == 1
}

func TestMigrator_Up(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := db.Migrator(testMigrations, "sql")

	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if len(applied) != 2 || applied[0] != "20260101_000000" {
		t.Errorf("applied = %v, want both versions oldest first", applied)
	}
	if !tableExists(t, db, "test_users") || !tableExists(t, db, "test_notes") {
		t.Error("migration tables not created")
	}

	records, pending, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(records) != 2 || len(pending) != 0 {
		t.Errorf("Status() = %d applied, %d pending; want 2, 0", len(records), len(pending))
	}
	if records[0].Name != "users" {
		t.Errorf("records[0].Name = %q, want users", records[0].Name)
	}

	again, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Up() applied %v, want none", again)
	}
}

func TestMigrator_Down(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := db.Migrator(testMigrations, "sql")

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	// The latest migration has no down file.
	if _, err := m.Down(ctx); !errors.Is(err, ErrNoDownSQL) {
		t.Fatalf("Down() error = %v, want ErrNoDownSQL", err)
	}
}

func TestMigrator_DownRollsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_users.up.sql":   testMigrations["sql/20260101_000000_users.up.sql"],
		"20260101_000000_users.down.sql": testMigrations["sql/20260101_000000_users.down.sql"],
	}
	db := openTestDB(t)
	ctx := context.Background()
	m := db.Migrator(fsys, "")

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	version, err := m.Down(ctx)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if version != "20260101_000000" {
		t.Errorf("Down() version = %q", version)
	}
	if tableExists(t, db, "test_users") {
		t.Error("test_users should be dropped")
	}

	// Nothing left to roll back.
	version, err = m.Down(ctx)
	if err != nil || version != "" {
		t.Errorf("Down() on empty = (%q, %v), want (\"\", nil)", version, err)
	}
}

func TestMigrator_NoMigrations(t *testing.T) {
	db := openTestDB(t)

	applied, err := db.Migrator(fstest.MapFS{}, "missing").Up(context.Background())
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %v, want none", applied)
	}
}

func TestMigrator_FailureKeepsEarlierMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id TEXT);")},
		"20260102_000000_broken.up.sql": {Data: []byte("CREATE TABLE oops (")},
	}
	db := openTestDB(t)

	applied, err := db.Migrator(fsys, ".").Up(context.Background())
	if err == nil {
		t.Fatal("Up() expected error for broken migration")
	}
	if len(applied) != 1 {
		t.Errorf("applied = %v, want the first migration only", applied)
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("earlier migration should remain committed")
	}
}

// The shipped schema applies cleanly and rolls all the way back.
func TestMigrator_ShippedSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := db.Migrator(migrations.FS, migrations.Dir)

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	for _, table := range []string{"events", "timers", "actions", "timer_adjustments", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}

	for {
		version, err := m.Down(ctx)
		if err != nil {
			t.Fatalf("Down() error = %v", err)
		}
		if version == "" {
			break
		}
	}
	if tableExists(t, db, "events") {
		t.Error("events should be dropped after full rollback")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_090000_timeline.up.sql", "20260301_090000", "timeline", true, true},
		{"20260301_090100_audit_logs.down.sql", "20260301_090100", "audit_logs", false, true},
		{"20260301_090000.up.sql", "20260301_090000", "20260301_090000", true, true},
		{"20260301_090000_timeline.sql", "", "", false, false},
		{"timeline.up.sql", "", "", false, false},
		{"2026_0900_x.up.sql", "", "", false, false},
		{"README.md", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, isUp, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
