package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PingTimeout bounds the readiness ping.
const PingTimeout = 3 * time.Second

// UniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const UniqueViolation = "23505"

// Open creates a pgx connection pool for dsn and verifies it with a ping. Caller must Close the pool.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Ping checks that the database is reachable within PingTimeout.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("db: nil pool")
	}
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	return pool.Ping(ctx)
}

// UniqueConstraint returns the violated constraint name when err is a unique violation.
func UniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
