package allowlist

import (
	"context"
	"database/sql"
	"fmt"

	"riskgate/internal/ratelimit/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// PostgresStore persists allowlist entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry *models.AllowlistEntry) error {
	if entry == nil {
		return fmt.Errorf("allowlist entry is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limit_allowlist (id, identifier, reason, expires_at, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identifier) DO UPDATE SET
			reason = EXCLUDED.reason,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at,
			created_by = EXCLUDED.created_by`,
		entry.ID, entry.Identifier, entry.Reason, nullTime(entry), entry.CreatedAt, entry.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("add allowlist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, identifier string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_allowlist WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("remove allowlist entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IsAllowlisted(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rate_limit_allowlist
			WHERE identifier = $1 AND (expires_at IS NULL OR expires_at > $2)
		)`, identifier, requestcontext.Now(ctx)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check allowlist: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.AllowlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identifier, reason, expires_at, created_at, created_by
		FROM rate_limit_allowlist
		WHERE expires_at IS NULL OR expires_at > $1
		ORDER BY created_at`, requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("list allowlist entries: %w", err)
	}
	defer rows.Close()

	var out []*models.AllowlistEntry
	for rows.Next() {
		var e models.AllowlistEntry
		var expires sql.NullTime
		if err := rows.Scan(&e.ID, &e.Identifier, &e.Reason, &expires, &e.CreatedAt, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan allowlist entry: %w", err)
		}
		if expires.Valid {
			t := expires.Time
			e.ExpiresAt = &t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullTime(e *models.AllowlistEntry) sql.NullTime {
	if e.ExpiresAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *e.ExpiresAt, Valid: true}
}
