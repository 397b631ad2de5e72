// Package service implements the approval queue. Resolution is first-wins:
// the store's conditional update decides, and every loser gets a conflict.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"riskgate/internal/approval/metrics"
	"riskgate/internal/approval/models"
	"riskgate/internal/approval/ports"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/audit"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/platform/tx"
	"riskgate/pkg/requestcontext"
)

type Service struct {
	store          ports.Store
	processor      ports.Processor
	notifier       ports.Notifier
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store ports.Store, processor ports.Processor, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("approval store is required")
	}
	if processor == nil {
		return nil, errors.New("payout processor is required")
	}
	s := &Service{store: store, processor: processor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enqueue suspends a payout pending review. Inside a transaction the
// created notification waits for commit.
func (s *Service) Enqueue(ctx context.Context, req models.EnqueueRequest) (*models.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	flags := slices.Clone(req.Flags)
	slices.Sort(flags)
	flags = slices.Compact(flags)

	rec := &models.Record{
		ID:          uuid.NewString(),
		PayoutID:    req.PayoutID,
		Subject:     req.Subject,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Flags:       flags,
		Snapshot:    req.Snapshot,
		Status:      models.StatusPending,
		RequestedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue approval",
			"payout_id", req.PayoutID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to queue payout for review")
	}
	s.metrics.IncrementEnqueued(string(flags[0]))
	s.logger.InfoContext(ctx, "payout queued for review",
		"approval_id", rec.ID,
		"payout_id", rec.PayoutID,
		"subject", rec.Subject,
		"flags", flags,
	)
	if s.notifier != nil {
		created := rec.Clone()
		tx.AfterCommit(ctx, func() {
			if err := s.notifier.ApprovalCreated(ctx, created); err != nil {
				s.logger.WarnContext(ctx, "approval created notification failed", "approval_id", created.ID, "error", err)
			}
		})
	}
	return rec.Clone(), nil
}

// ResolveResult reports a resolution and whether the payout side effect ran.
type ResolveResult struct {
	Record           *models.Record `json:"approval"`
	ProcessingFailed bool           `json:"processing_failed,omitempty"`
}

// Resolve applies a reviewer's decision once. The record is terminal even if
// the payout processor call fails afterwards; that failure is reported in the
// result and logged for follow-up.
func (s *Service) Resolve(ctx context.Context, id, reviewer string, req models.ResolveRequest) (*ResolveResult, error) {
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "reviewer identity is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status, _ := req.Decision.Status()

	rec, err := s.store.Resolve(ctx, id, models.Resolution{
		Status:     status,
		ReviewedBy: reviewer,
		Notes:      req.Notes,
		ReviewedAt: requestcontext.Now(ctx),
	})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "approval not found")
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncrementConflict()
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventApprovalConflicted,
			"approval_id", id,
			"reviewer", reviewer,
			"decision", string(req.Decision),
		)
		return nil, dErrors.New(dErrors.CodeApprovalConflict, "approval was already resolved")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to resolve approval")
	}

	s.metrics.IncrementResolved(string(rec.Status))
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventApprovalResolved,
		"approval_id", rec.ID,
		"payout_id", rec.PayoutID,
		"subject", rec.Subject,
		"status", string(rec.Status),
		"reviewer", reviewer,
	)

	result := &ResolveResult{Record: rec}
	var perr error
	if rec.Status == models.StatusApproved {
		perr = s.processor.Release(ctx, rec.PayoutID)
	} else {
		perr = s.processor.Fail(ctx, rec.PayoutID, rec.Notes)
	}
	if perr != nil {
		result.ProcessingFailed = true
		s.metrics.IncrementProcessingFailure()
		s.logger.ErrorContext(ctx, "payout processing after review failed",
			"approval_id", rec.ID,
			"payout_id", rec.PayoutID,
			"status", string(rec.Status),
			"error", perr,
		)
	}

	if s.notifier != nil {
		if err := s.notifier.ApprovalResolved(ctx, rec.Clone()); err != nil {
			s.logger.WarnContext(ctx, "approval resolved notification failed", "approval_id", rec.ID, "error", err)
		}
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "approval not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval")
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, f models.Filter) ([]*models.Record, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status")
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approvals")
	}
	return out, nil
}
