package postgres

import (
	"context"
	"fmt"

	"huddle/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_rooms",
		SQL: `
CREATE TABLE IF NOT EXISTS rooms (
	id          UUID PRIMARY KEY,
	name        VARCHAR(100) NOT NULL,
	capacity    INTEGER NOT NULL CHECK (capacity > 0),
	description VARCHAR(1000),
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL DEFAULT 0,
	CONSTRAINT rooms_name_key UNIQUE (name)
);
CREATE INDEX IF NOT EXISTS rooms_active_capacity_idx ON rooms (active, capacity);`,
	},
	{
		Version: 2,
		Name:    "create_bookings",
		SQL: `
CREATE TABLE IF NOT EXISTS bookings (
	id              UUID PRIMARY KEY,
	room_id         UUID NOT NULL REFERENCES rooms (id),
	title           VARCHAR(200) NOT NULL,
	organizer_email VARCHAR(255) NOT NULL,
	start_time      TIMESTAMPTZ NOT NULL,
	end_time        TIMESTAMPTZ NOT NULL,
	status          VARCHAR(20) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	version         BIGINT NOT NULL DEFAULT 0,
	CONSTRAINT bookings_interval_check CHECK (end_time > start_time),
	CONSTRAINT bookings_status_check CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'EXPIRED'))
);
CREATE INDEX IF NOT EXISTS bookings_room_time_idx ON bookings (room_id, start_time, end_time);
CREATE INDEX IF NOT EXISTS bookings_organizer_idx ON bookings (organizer_email, start_time DESC);
CREATE INDEX IF NOT EXISTS bookings_status_end_idx ON bookings (status, end_time);`,
	},
	{
		Version: 3,
		Name:    "bookings_no_overlap",
		SQL: `
CREATE EXTENSION IF NOT EXISTS btree_gist;
ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_overlap;
ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
	EXCLUDE USING gist (room_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&)
	WHERE (status IN ('PENDING', 'CONFIRMED'));`,
	},
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigration applies every migration not yet recorded in
// schema_migrations, each in its own transaction.
func RunMigration(ctx context.Context, pool *sqlx.DB, log *logger.Logger) error {
	if _, err := pool.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var applied []int
	if err := pool.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := Pending(applied)
	if len(pending) == 0 {
		log.Info("Postgres schema is up to date")
		return nil
	}

	for _, m := range pending {
		if err := apply(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		log.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

// Pending returns the migrations whose versions are not in applied, in
// version order.
func Pending(applied []int) []Migration {
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	var pending []Migration
	for _, m := range Migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

func apply(ctx context.Context, pool *sqlx.DB, m Migration) error {
	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
