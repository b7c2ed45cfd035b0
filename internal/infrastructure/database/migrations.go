package database

import (
	"context"
	"fmt"
	"time"
)

// Migration is a single schema change applied at startup.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// migrations lists all schema changes in version order.
// The schema is compiled in; the snapshot database is small and owned
// entirely by this process, so external migration files buy nothing.
var migrations = []Migration{
	{
		Version: "20250301_000000",
		Name:    "initial_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS box_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	work_mode INTEGER NOT NULL DEFAULT 0,
	next_dev_id INTEGER NOT NULL DEFAULT 1
);
INSERT OR IGNORE INTO box_state (id, work_mode, next_dev_id) VALUES (1, 0, 1);

CREATE TABLE IF NOT EXISTS devices (
	dev_id INTEGER PRIMARY KEY,
	driver_id INTEGER NOT NULL,
	mac BLOB NOT NULL,
	dev_type INTEGER NOT NULL,
	class INTEGER NOT NULL,
	interface INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS channels (
	dev_id INTEGER NOT NULL REFERENCES devices(dev_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	cid INTEGER NOT NULL,
	PRIMARY KEY (dev_id, name)
);

CREATE TABLE IF NOT EXISTS timers (
	dev_id INTEGER NOT NULL REFERENCES devices(dev_id) ON DELETE CASCADE,
	slot INTEGER NOT NULL,
	work_mode INTEGER NOT NULL,
	flag INTEGER NOT NULL,
	hour INTEGER NOT NULL,
	min INTEGER NOT NULL,
	sec INTEGER NOT NULL,
	wday INTEGER NOT NULL,
	year INTEGER NOT NULL,
	mon INTEGER NOT NULL,
	mday INTEGER NOT NULL,
	act_id INTEGER NOT NULL,
	act_param1 INTEGER NOT NULL,
	act_param2 INTEGER NOT NULL,
	PRIMARY KEY (dev_id, slot)
);

CREATE TABLE IF NOT EXISTS delays (
	dev_id INTEGER NOT NULL REFERENCES devices(dev_id) ON DELETE CASCADE,
	slot INTEGER NOT NULL,
	work_mode INTEGER NOT NULL,
	flag INTEGER NOT NULL,
	evt_id INTEGER NOT NULL,
	evt_param1 INTEGER NOT NULL,
	evt_param2 INTEGER NOT NULL,
	act_id INTEGER NOT NULL,
	act_param1 INTEGER NOT NULL,
	act_param2 INTEGER NOT NULL,
	delay_sec INTEGER NOT NULL,
	PRIMARY KEY (dev_id, slot)
);

CREATE TABLE IF NOT EXISTS linkages (
	dev_id INTEGER NOT NULL REFERENCES devices(dev_id) ON DELETE CASCADE,
	slot INTEGER NOT NULL,
	work_mode INTEGER NOT NULL,
	flag INTEGER NOT NULL,
	evt_id INTEGER NOT NULL,
	evt_param1 INTEGER NOT NULL,
	evt_param2 INTEGER NOT NULL,
	act_dev_id INTEGER NOT NULL,
	act_id INTEGER NOT NULL,
	act_param1 INTEGER NOT NULL,
	act_param2 INTEGER NOT NULL,
	PRIMARY KEY (dev_id, slot)
);

CREATE TABLE IF NOT EXISTS scenes (
	name TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scene_actions (
	scene_name TEXT NOT NULL REFERENCES scenes(name) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	delay INTEGER NOT NULL,
	has_cond INTEGER NOT NULL,
	cond_expr INTEGER NOT NULL DEFAULT 0,
	cond_dev_id INTEGER NOT NULL DEFAULT 0,
	cond_status_id INTEGER NOT NULL DEFAULT 0,
	cond_value INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (scene_name, idx)
);

CREATE TABLE IF NOT EXISTS scene_acts (
	scene_name TEXT NOT NULL REFERENCES scenes(name) ON DELETE CASCADE,
	action_idx INTEGER NOT NULL,
	idx INTEGER NOT NULL,
	flag INTEGER NOT NULL,
	dev_id INTEGER NOT NULL,
	status_id INTEGER NOT NULL,
	param1 INTEGER NOT NULL,
	param2 INTEGER NOT NULL,
	PRIMARY KEY (scene_name, action_idx, idx)
);
`,
	},
}

// Migrate applies all pending migrations to the database.
//
// Each migration runs in its own transaction. If migration N fails,
// earlier migrations remain committed, N is rolled back, and later
// migrations are not attempted. Re-running Migrate continues from N.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return applied, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}
