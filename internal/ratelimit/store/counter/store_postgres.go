package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"riskgate/pkg/requestcontext"
)

// PostgresCounterStore keeps counters in the rate_limit_counters table. The
// upsert is a single statement, so concurrent increments serialize on the row
// lock and each caller sees a distinct value.
type PostgresCounterStore struct {
	db *sql.DB
}

func NewPostgresCounterStore(db *sql.DB) *PostgresCounterStore {
	return &PostgresCounterStore{db: db}
}

const incrementQuery = `
INSERT INTO rate_limit_counters (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET
  value = CASE WHEN rate_limit_counters.expires_at <= $4 THEN EXCLUDED.value ELSE rate_limit_counters.value + EXCLUDED.value END,
  expires_at = CASE WHEN rate_limit_counters.expires_at <= $4 THEN EXCLUDED.expires_at ELSE rate_limit_counters.expires_at END
RETURNING value`

func (s *PostgresCounterStore) Increment(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	now := requestcontext.Now(ctx)
	var v int64
	if err := s.db.QueryRowContext(ctx, incrementQuery, key, n, now.Add(ttl), now).Scan(&v); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return v, nil
}

func (s *PostgresCounterStore) Get(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM rate_limit_counters WHERE key = $1 AND expires_at > $2`,
		key, requestcontext.Now(ctx),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return v, nil
}

func (s *PostgresCounterStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_counters WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete counter: %w", err)
	}
	return nil
}

// PurgeExpired removes dead windows; run periodically.
func (s *PostgresCounterStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_counters WHERE expires_at <= $1`, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("purge counters: %w", err)
	}
	return res.RowsAffected()
}
