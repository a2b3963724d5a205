package window

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"diyetlenio/internal/ratelimit/models"
	"diyetlenio/pkg/requestcontext"
)

// PostgresStore persists fixed-window counters in PostgreSQL.
// Admission for a key is serialized with a transaction-scoped advisory lock.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Admit(ctx context.Context, key string, limit int, window time.Duration) (models.WindowState, error) {
	if err := validateAdmit(key, limit, window); err != nil {
		return models.WindowState{}, err
	}

	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WindowState{}, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, key); err != nil {
		return models.WindowState{}, fmt.Errorf("acquire rate limit lock: %w", err)
	}

	var (
		count     int
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT count, expires_at FROM rate_limit_windows WHERE key = $1`, key,
	).Scan(&count, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && !now.Before(expiresAt)):
		count = 0
		expiresAt = now.Add(window)
	case err != nil:
		return models.WindowState{}, fmt.Errorf("read rate limit window: %w", err)
	}

	admitted := count < limit
	if admitted {
		count++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rate_limit_windows (key, count, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET count = EXCLUDED.count, expires_at = EXCLUDED.expires_at
		`, key, count, expiresAt)
		if err != nil {
			return models.WindowState{}, fmt.Errorf("write rate limit window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.WindowState{}, fmt.Errorf("commit rate limit tx: %w", err)
	}

	return models.WindowState{Count: count, Admitted: admitted, TTL: expiresAt.Sub(now)}, nil
}

func (s *PostgresStore) Peek(ctx context.Context, key string) (models.WindowState, error) {
	if key == "" {
		return models.WindowState{}, fmt.Errorf("rate limit key is required")
	}

	now := requestcontext.Now(ctx)

	var (
		count     int
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT count, expires_at FROM rate_limit_windows WHERE key = $1 AND expires_at > $2`, key, now,
	).Scan(&count, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WindowState{}, nil
	}
	if err != nil {
		return models.WindowState{}, fmt.Errorf("peek rate limit window: %w", err)
	}
	return models.WindowState{Count: count, TTL: expiresAt.Sub(now)}, nil
}

// DeleteExpired removes windows whose TTL has passed and returns the number removed.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE expires_at <= $1`, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("delete expired rate limit windows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
