package postgres

import (
	"context"
	"fmt"
	"time"

	"huddle/pkg/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

func Open(cfg Config, log *logger.Logger) (*sqlx.DB, error) {
	log.Info("Initializing Postgres connection...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("Postgres initialized successfully",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)
	return conn, nil
}

type Pinger struct {
	DB *sqlx.DB
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
