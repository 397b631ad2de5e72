// Package ports defines the approval queue's collaborators.
package ports

import (
	"context"

	"riskgate/internal/approval/models"
)

// Store persists approval records.
type Store interface {
	Create(ctx context.Context, r *models.Record) error
	Get(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, f models.Filter) ([]*models.Record, error)
	// Resolve applies res only while the record is pending. It returns
	// sentinel.ErrConflict if another resolution won and sentinel.ErrNotFound
	// for unknown ids.
	Resolve(ctx context.Context, id string, res models.Resolution) (*models.Record, error)
}

// Notifier is told about queue changes. Errors are logged, never propagated.
type Notifier interface {
	ApprovalCreated(ctx context.Context, r *models.Record) error
	ApprovalResolved(ctx context.Context, r *models.Record) error
}

// Processor moves the referenced payout on after review.
type Processor interface {
	Release(ctx context.Context, payoutID string) error
	Fail(ctx context.Context, payoutID, reason string) error
}
