package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	approvalmodels "riskgate/internal/approval/models"
	"riskgate/internal/audit"
	"riskgate/internal/payout/models"
	rlmodels "riskgate/internal/ratelimit/models"
)

// History is the payout ledger. Sums and counts skip failed payouts.
type History interface {
	// LockSubject holds the subject's ledger until the surrounding
	// transaction ends, so window sums and the following Record agree.
	LockSubject(ctx context.Context, subject string) error
	Record(ctx context.Context, p *models.Payout) error
	SumSince(ctx context.Context, subject string, since time.Time) (decimal.Decimal, error)
	CountSince(ctx context.Context, subject string, since time.Time) (int, error)
	// Transition moves a payout from one status to another, returning
	// sentinel.ErrNotFound or sentinel.ErrConflict when it cannot.
	Transition(ctx context.Context, payoutID string, from, to models.Status) error
}

// Limiter backs the daily transaction count.
type Limiter interface {
	Check(ctx context.Context, name, key string) (*rlmodels.RateLimitResult, error)
}

// ApprovalQueue receives payouts suspended for review.
type ApprovalQueue interface {
	Enqueue(ctx context.Context, req approvalmodels.EnqueueRequest) (*approvalmodels.Record, error)
}

type BlockLog interface {
	Record(ctx context.Context, a audit.BlockedAttempt) (*audit.BlockedAttempt, error)
}

type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}
