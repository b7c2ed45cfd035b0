package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Migrate is idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	for _, table := range []string{
		"box_state", "devices", "channels", "timers", "delays",
		"linkages", "scenes", "scene_actions", "scene_acts",
	} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	// Singleton box row seeded by the initial migration.
	var nextID int
	if err := db.QueryRowContext(ctx,
		"SELECT next_dev_id FROM box_state WHERE id = 1",
	).Scan(&nextID); err != nil {
		t.Fatalf("box_state row missing: %v", err)
	}
	if nextID != 1 {
		t.Errorf("next_dev_id = %d, want 1", nextID)
	}
}
