package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker hands out session-level advisory locks from a pgx pool so
// that only one worker replica runs a job at a time.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

func OpenPostgresLocker(ctx context.Context, dsn string) (*PostgresLocker, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/fuelkl?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// Advisory locks belong to a session, so acquire and release must use
	// the same connection.
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresLocker{pool: pool}, nil
}

func (l *PostgresLocker) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := l.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (l *PostgresLocker) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := l.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

func (l *PostgresLocker) Close() error {
	l.pool.Close()
	return nil
}
