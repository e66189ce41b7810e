package testutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	postgresMigration "huddle/internal/migrations/postgres"
	"huddle/pkg/db/postgres"
	"huddle/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// setupLockID serializes schema setup across test binaries sharing one
// database.
const setupLockID = 7310

// PostgresHelper holds a pool whose search_path is a schema private to one
// test package.
type PostgresHelper struct {
	DB     *sqlx.DB
	Schema string
}

// NewPostgresHelper recreates schema, applies the migrations inside it and
// returns a pool bound to it. The pool is closed when the test ends.
func NewPostgresHelper(t *testing.T, schema string) *PostgresHelper {
	t.Helper()

	env := NewTestEnv()
	if env.PostgresDSN == "" {
		t.Skipf("%s not set, skipping Postgres test", EnvPostgresDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	resetSchema(ctx, t, env.PostgresDSN, schema)

	pool, err := postgres.Open(postgres.Config{
		DSN:             withSearchPath(env.PostgresDSN, schema),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnectTimeout:  ConnectionTimeout,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to connect to Postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Logf("warning: failed to close Postgres pool: %v", err)
		}
	})

	if err := postgresMigration.RunMigration(ctx, pool, logger.Discard()); err != nil {
		t.Fatalf("failed to migrate schema %s: %v", schema, err)
	}

	return &PostgresHelper{DB: pool, Schema: schema}
}

func resetSchema(ctx context.Context, t *testing.T, dsn, schema string) {
	t.Helper()

	admin, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer admin.Close()

	conn, err := admin.Connx(ctx)
	if err != nil {
		t.Fatalf("failed to acquire Postgres connection: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, setupLockID); err != nil {
		t.Fatalf("failed to take setup lock: %v", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, setupLockID)
	}()

	quoted := pq.QuoteIdentifier(schema)
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, quoted),
		fmt.Sprintf(`CREATE SCHEMA %s`, quoted),
	}
	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to prepare schema %s (%s): %v", schema, stmt, err)
		}
	}
}

// withSearchPath adds search_path as a run-time parameter to either DSN form
// lib/pq accepts.
func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + url.QueryEscape(schema)
	}
	return dsn + " search_path=" + schema
}

// Exec runs a statement outside any transaction, for arranging rows the
// repositories would refuse to write.
func (p *PostgresHelper) Exec(t *testing.T, query string, args ...any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.DB.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("failed to exec %q: %v", query, err)
	}
}
