package ports

import (
	"context"
	"time"

	"riskgate/internal/audit"
	"riskgate/internal/risk/models"
)

// AssessmentStore persists immutable assessment records.
type AssessmentStore interface {
	Save(ctx context.Context, a *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, f models.AssessmentFilter) ([]*models.Assessment, error)
}

// BlockLog records denied attempts.
type BlockLog interface {
	Record(ctx context.Context, a audit.BlockedAttempt) (*audit.BlockedAttempt, error)
}

// ActivityRecorder appends an assessed action to the velocity series.
type ActivityRecorder interface {
	Record(ctx context.Context, subject, ip string, a models.Action, at time.Time) error
}

// TxRunner runs fn so that all writes inside it commit or fail together.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}
