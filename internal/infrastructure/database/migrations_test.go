package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Second migration added a column to the table made by the first.
	if _, err := db.ExecContext(ctx, "INSERT INTO test_items (name, note) VALUES (?, ?)", "a", "b"); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}

	pending, err := db.PendingMigrations(ctx)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var applied int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
}

func TestMigrate_NoFilesystem(t *testing.T) {
	origFS := MigrationsFS
	t.Cleanup(func() { MigrationsFS = origFS })
	MigrationsFS = embed.FS{}

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file        string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"0001_catalog_snapshot.sql", "0001", "catalog_snapshot", true},
		{"20260118_init.sql", "20260118", "init", true},
		{"noversion.sql", "", "", false},
		{"_missing.sql", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.file)
			if v != tt.wantVersion || n != tt.wantName || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.file, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
