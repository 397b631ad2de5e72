package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"riskgate/internal/payout/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/platform/tx"
	"riskgate/pkg/requestcontext"
)

// PostgresStore persists the payout ledger in the payouts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	insertPayout = `INSERT INTO payouts (id, subject, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	sumPayouts = `SELECT COALESCE(SUM(amount), 0) FROM payouts
WHERE subject = $1 AND created_at >= $2 AND status <> 'failed'`
	countPayouts = `SELECT COUNT(*) FROM payouts
WHERE subject = $1 AND created_at >= $2 AND status <> 'failed'`
	transitionPayout = `UPDATE payouts SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	lockSubject      = `SELECT pg_advisory_xact_lock(hashtext($1))`
)

// LockSubject takes a transaction-scoped advisory lock on the subject. It
// must run inside tx.Run; outside a transaction the lock is released at once.
func (s *PostgresStore) LockSubject(ctx context.Context, subject string) error {
	if _, ok := tx.From(ctx); !ok {
		return errors.New("lock payout subject: no transaction in context")
	}
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, lockSubject, "payout:"+subject); err != nil {
		return fmt.Errorf("lock payout subject: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, p *models.Payout) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, insertPayout,
		p.ID, p.Subject, p.Amount, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("payout %s: %w", p.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumSince(ctx context.Context, subject string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := tx.Conn(ctx, s.db).QueryRowContext(ctx, sumPayouts, subject, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum payouts: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, subject string, since time.Time) (int, error) {
	var count int
	if err := tx.Conn(ctx, s.db).QueryRowContext(ctx, countPayouts, subject, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count payouts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Transition(ctx context.Context, payoutID string, from, to models.Status) error {
	conn := tx.Conn(ctx, s.db)
	res, err := conn.ExecContext(ctx, transitionPayout, payoutID, string(from), string(to), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("transition payout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition payout: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payouts WHERE id = $1)`, payoutID).Scan(&exists); err != nil {
		return fmt.Errorf("check payout: %w", err)
	}
	if !exists {
		return fmt.Errorf("payout %s: %w", payoutID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("payout %s is not %s: %w", payoutID, from, sentinel.ErrConflict)
}
