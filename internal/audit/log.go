// Package audit keeps the append-only log of blocked attempts.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/privacy"
	"riskgate/pkg/requestcontext"
)

// Store persists blocked attempts. Records are never updated or deleted.
type Store interface {
	Append(ctx context.Context, a *BlockedAttempt) error
	List(ctx context.Context, f Filter) ([]*BlockedAttempt, error)
}

// Log records blocked attempts durably. A failed write is returned to the
// caller so that no block is acted on without its record.
type Log struct {
	store  Store
	logger *slog.Logger
}

func NewLog(store Store, logger *slog.Logger) (*Log, error) {
	if store == nil {
		return nil, errors.New("blocked attempt store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, logger: logger}, nil
}

// Record fills identity and request fields, then appends.
func (l *Log) Record(ctx context.Context, a BlockedAttempt) (*BlockedAttempt, error) {
	if a.Subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "blocked attempt requires a subject")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = requestcontext.Now(ctx)
	}
	if a.RequestID == "" {
		a.RequestID = requestcontext.RequestID(ctx)
	}
	if a.IPPrefix == "" {
		if ip := requestcontext.ClientIP(ctx); ip != "" {
			a.IPPrefix = privacy.AnonymizeIP(ip)
		}
	}
	if err := l.store.Append(ctx, &a); err != nil {
		l.logger.ErrorContext(ctx, "failed to record blocked attempt",
			"subject", a.Subject,
			"source", string(a.Source),
			"error", err,
		)
		return nil, dErrors.Wrap(fmt.Errorf("append blocked attempt: %w", err), dErrors.CodeStoreUnavailable, "unable to record decision")
	}
	return &a, nil
}

func (l *Log) List(ctx context.Context, f Filter) ([]*BlockedAttempt, error) {
	out, err := l.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list blocked attempts")
	}
	return out, nil
}
