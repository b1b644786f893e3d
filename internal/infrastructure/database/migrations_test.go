package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

//go:embed testdata/*.sql
var testdataFS embed.FS

func testMigrations(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(testdataFS, "testdata")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	return sub
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	migrations := testMigrations(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, migrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"test_widgets", "test_widget_tags"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Fatalf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" {
		t.Errorf("first applied = %s", applied[0].Version)
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx, migrations); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

// TestMigrateDown verifies rollback of the most recent migration only.
func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	migrations := testMigrations(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, migrations); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "test_widget_tags") {
		t.Error("latest migration not rolled back")
	}
	if !tableExists(t, db, "test_widgets") {
		t.Error("earlier migration rolled back too")
	}

	_, pending, err := db.MigrationStatus(ctx, migrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "widget_tags" {
		t.Errorf("pending = %+v", pending)
	}
}

// TestMigrateNoMigrations verifies nil and empty filesystems are accepted.
func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
	if err := db.Migrate(ctx, fstest.MapFS{}); err != nil {
		t.Errorf("Migrate(empty) error = %v", err)
	}
	if err := db.MigrateDown(ctx, nil); err != nil {
		t.Errorf("MigrateDown(nil) with nothing applied error = %v", err)
	}
}

// TestMigrateFailureStops verifies a bad migration is rolled back and later ones are not attempted.
func TestMigrateFailureStops(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260101_000000_good.up.sql":  {Data: []byte("CREATE TABLE good (x INTEGER);")},
		"20260102_000000_bad.up.sql":   {Data: []byte("CREATE TABLE broken (;")},
		"20260103_000000_later.up.sql": {Data: []byte("CREATE TABLE later (x INTEGER);")},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() succeeded with invalid SQL")
	}
	if !tableExists(t, db, "good") {
		t.Error("migration before the failure was not kept")
	}
	if tableExists(t, db, "later") {
		t.Error("migration after the failure was applied")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOK      bool
	}{
		{"up migration", "20261019_120000_session_kv.up.sql", "20261019_120000", true, true},
		{"down migration", "20261019_120000_session_kv.down.sql", "20261019_120000", false, true},
		{"no direction", "20261019_120000_session_kv.sql", "", false, false},
		{"not sql", "20261019_120000_session_kv.up.txt", "", false, false},
		{"no version", "session.up.sql", "", false, false},
		{"embed go file", "embed.go", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if version != tt.wantVersion || isUp != tt.wantIsUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.filename, version, isUp, ok, tt.wantVersion, tt.wantIsUp, tt.wantOK)
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261019_120000_session_kv.up.sql", "session_kv"},
		{"20261019_120000_session_kv.down.sql", "session_kv"},
		{"20261019_120000.up.sql", "20261019_120000"},
	}
	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
