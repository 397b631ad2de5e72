package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"riskgate/internal/risk/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/platform/tx"
)

// PostgresStore writes assessments to risk_assessments. Factors are stored as
// JSONB, reasons as text[].
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	insertAssessment = `
INSERT INTO risk_assessments
  (id, subject, action, score, level, decision, factors, reasons, ip_prefix, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	selectAssessment = `SELECT id, subject, action, score, level, decision, factors, reasons,
  COALESCE(ip_prefix, ''), COALESCE(request_id, ''), created_at
FROM risk_assessments`
)

func (s *PostgresStore) Save(ctx context.Context, a *models.Assessment) error {
	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, insertAssessment,
		a.ID, a.Subject, string(a.Action), a.Score, string(a.Level), string(a.Decision),
		factors, pq.Array(a.Reasons), a.IPPrefix, a.RequestID, a.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("assessment %s: %w", a.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, selectAssessment+" WHERE id = $1", id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, f models.AssessmentFilter) ([]*models.Assessment, error) {
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
	query := selectAssessment
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (*models.Assessment, error) {
	var (
		a                       models.Assessment
		action, level, decision string
		factors                 []byte
	)
	if err := row.Scan(&a.ID, &a.Subject, &action, &a.Score, &level, &decision,
		&factors, pq.Array(&a.Reasons), &a.IPPrefix, &a.RequestID, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Action = models.Action(action)
	a.Level = models.Level(level)
	a.Decision = models.Decision(decision)
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &a.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
	}
	return &a, nil
}
