package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"riskgate/pkg/platform/tx"
)

// PostgresStore appends to the blocked_attempts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertBlockedAttempt = `
INSERT INTO blocked_attempts
  (id, subject, action, source, reason_code, message, reasons, score, assessment_id, payout_id, ip_prefix, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (s *PostgresStore) Append(ctx context.Context, a *BlockedAttempt) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, insertBlockedAttempt,
		a.ID, a.Subject, a.Action, string(a.Source), a.ReasonCode, a.Message,
		pq.Array(a.Reasons), a.Score,
		nullString(a.AssessmentID), nullString(a.PayoutID), nullString(a.IPPrefix), nullString(a.RequestID),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert blocked attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*BlockedAttempt, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	query := `SELECT id, subject, action, source, reason_code, message, reasons, score,
  COALESCE(assessment_id, ''), COALESCE(payout_id, ''), COALESCE(ip_prefix, ''), COALESCE(request_id, ''), created_at
FROM blocked_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocked attempts: %w", err)
	}
	defer rows.Close()

	var out []*BlockedAttempt
	for rows.Next() {
		var (
			a      BlockedAttempt
			source string
		)
		if err := rows.Scan(&a.ID, &a.Subject, &a.Action, &source, &a.ReasonCode, &a.Message,
			pq.Array(&a.Reasons), &a.Score, &a.AssessmentID, &a.PayoutID, &a.IPPrefix, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blocked attempt: %w", err)
		}
		a.Source = Source(source)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked attempts: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
