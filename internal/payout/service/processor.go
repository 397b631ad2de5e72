package service

import (
	"context"
	"errors"
	"log/slog"

	"riskgate/internal/payout/models"
	"riskgate/internal/payout/ports"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/sentinel"
)

// Processor releases or fails suspended payouts once a reviewer decides. It
// satisfies the approval queue's processor port.
type Processor struct {
	history ports.History
	logger  *slog.Logger
}

func NewProcessor(history ports.History, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{history: history, logger: logger}
}

func (p *Processor) Release(ctx context.Context, payoutID string) error {
	return p.transition(ctx, payoutID, models.StatusReleased, "")
}

// Fail marks the payout failed so it stops counting toward rolling totals.
func (p *Processor) Fail(ctx context.Context, payoutID, reason string) error {
	return p.transition(ctx, payoutID, models.StatusFailed, reason)
}

func (p *Processor) transition(ctx context.Context, payoutID string, to models.Status, reason string) error {
	err := p.history.Transition(ctx, payoutID, models.StatusPendingApproval, to)
	switch {
	case err == nil:
		p.logger.InfoContext(ctx, "payout review applied",
			"payout_id", payoutID,
			"status", string(to),
			"reason", reason,
		)
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "payout not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "payout is not awaiting review")
	default:
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "payout history unavailable")
	}
}
