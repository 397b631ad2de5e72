package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"riskgate/internal/approval/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/platform/tx"
)

// PostgresStore keeps approvals in payout_approvals. Resolve is a single
// conditional UPDATE, so concurrent reviewers race on the row lock and only
// the first sees a pending row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	approvalColumns = `id, payout_id, subject, amount, reason, flags, snapshot, status,
  requested_at, reviewed_at, COALESCE(reviewed_by, ''), COALESCE(notes, '')`

	insertApproval = `
INSERT INTO payout_approvals (id, payout_id, subject, amount, reason, flags, snapshot, status, requested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	resolveApproval = `
UPDATE payout_approvals
SET status = $2, reviewed_by = $3, notes = $4, reviewed_at = $5
WHERE id = $1 AND status = 'pending'
RETURNING ` + approvalColumns
)

func (s *PostgresStore) Create(ctx context.Context, r *models.Record) error {
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, insertApproval,
		r.ID, r.PayoutID, r.Subject, r.Amount, r.Reason, pq.Array(flagStrings(r.Flags)),
		snapshot, string(r.Status), r.RequestedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("approval for payout %s: %w", r.PayoutID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, "SELECT "+approvalColumns+" FROM payout_approvals WHERE id = $1", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, f models.Filter) ([]*models.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if !f.Since.IsZero() {
		add("requested_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("requested_at < $%d", f.Until)
	}
	query := "SELECT " + approvalColumns + " FROM payout_approvals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d", len(args))

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()
	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, id string, res models.Resolution) (*models.Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, resolveApproval,
		id, string(res.Status), res.ReviewedBy, res.Notes, res.ReviewedAt)
	r, err := scanRecord(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve approval: %w", err)
	}
	// No pending row: distinguish a lost race from an unknown id.
	var status string
	err = tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT status FROM payout_approvals WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve approval: %w", err)
	}
	return nil, fmt.Errorf("approval %s is %s: %w", id, status, sentinel.ErrConflict)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r        models.Record
		flags    []string
		snapshot []byte
		status   string
		reviewed sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.PayoutID, &r.Subject, &r.Amount, &r.Reason, pq.Array(&flags),
		&snapshot, &status, &r.RequestedAt, &reviewed, &r.ReviewedBy, &r.Notes); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	for _, f := range flags {
		r.Flags = append(r.Flags, models.Flag(f))
	}
	if reviewed.Valid {
		t := reviewed.Time
		r.ReviewedAt = &t
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &r, nil
}

func flagStrings(flags []models.Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
