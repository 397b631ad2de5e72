// Package service validates payout requests against ceilings and review
// triggers and routes suspicious ones to the approval queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	approvalmodels "riskgate/internal/approval/models"
	"riskgate/internal/audit"
	"riskgate/internal/payout/metrics"
	"riskgate/internal/payout/models"
	"riskgate/internal/payout/ports"
	"riskgate/internal/platform/tracing"
	rlmodels "riskgate/internal/ratelimit/models"
	riskmodels "riskgate/internal/risk/models"
	dErrors "riskgate/pkg/domain-errors"
	platformaudit "riskgate/pkg/platform/audit"
	"riskgate/pkg/platform/keylock"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// Service is the payout limit validator.
type Service struct {
	policy         Policy
	history        ports.History
	limiter        ports.Limiter
	approvals      ports.ApprovalQueue
	blocks         ports.BlockLog
	tx             ports.TxRunner
	subjects       *keylock.Sharded
	logger         *slog.Logger
	auditPublisher platformaudit.Emitter
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p platformaudit.Emitter) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner runs the window checks and the ledger writes of one payout in
// a single transaction.
func WithTxRunner(tx ports.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

type directRunner struct{}

func (directRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func New(policy Policy, history ports.History, limiter ports.Limiter, approvals ports.ApprovalQueue, blocks ports.BlockLog, opts ...Option) (*Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payout policy: %w", err)
	}
	if history == nil {
		return nil, errors.New("payout history is required")
	}
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if approvals == nil {
		return nil, errors.New("approval queue is required")
	}
	if blocks == nil {
		return nil, errors.New("block log is required")
	}
	s := &Service{
		policy:    policy,
		history:   history,
		limiter:   limiter,
		approvals: approvals,
		blocks:    blocks,
		tx:        directRunner{},
		subjects:  keylock.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// violation is a hard ceiling breach.
type violation struct {
	code    dErrors.Code
	reason  string
	message string
	meta    map[string]any
}

type reviewFlag struct {
	flag   approvalmodels.Flag
	reason string
}

// Validate runs the ceilings in order and stops at the first breach. A breach
// is recorded as a blocked attempt and returned as an error; payouts that pass
// are either processed or suspended for review.
func (s *Service) Validate(ctx context.Context, req models.ValidateRequest) (*models.Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.metrics.ObserveDuration(time.Since(start)) }()

	ctx, span := tracing.StartSpan(ctx, "payout.validate",
		tracing.Subject(req.Subject),
		tracing.PayoutID(req.PayoutID),
	)
	defer span.End()

	now := requestcontext.Now(ctx)
	if v := s.checkCeilings(&req, now); v != nil {
		return nil, s.reject(ctx, span, &req, v)
	}
	v, err := s.checkDailyCount(ctx, &req)
	if err != nil {
		tracing.Fail(span, err, "payout count unavailable")
		return nil, err
	}
	if v != nil {
		return nil, s.reject(ctx, span, &req, v)
	}

	// Window sums and the ledger write for one subject happen as one step:
	// the keyed lock covers this process, LockSubject covers other instances.
	unlock, err := s.subjects.Lock(ctx, req.Subject)
	if err != nil {
		tracing.Fail(span, err, "payout subject lock")
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "payout validation interrupted")
	}
	defer unlock()

	var (
		res   *models.Result
		flags []reviewFlag
	)
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		if err := s.history.LockSubject(ctx, req.Subject); err != nil {
			return s.historyError(ctx, err)
		}
		usage, viol, err := s.checkWindows(ctx, &req, now)
		if err != nil || viol != nil {
			v = viol
			return err
		}
		flags = s.reviewFlags(&req, usage)
		if len(flags) == 0 {
			res, err = s.process(ctx, &req, now)
			return err
		}
		res, err = s.suspend(ctx, &req, usage, flags, now)
		return err
	})
	if err != nil {
		tracing.Fail(span, err, "payout not recorded")
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to record payout")
	}
	if v != nil {
		return nil, s.reject(ctx, span, &req, v)
	}

	if res.Outcome == models.OutcomePendingApproval {
		platformaudit.LogAudit(ctx, s.logger, s.auditPublisher, platformaudit.EventPayoutSuspended,
			"subject", req.Subject,
			"payout_id", req.PayoutID,
			"approval_id", res.ApprovalID,
			"flags", flagNames(flags),
		)
		for _, f := range flags {
			s.metrics.IncrementFlag(string(f.flag))
		}
	}
	s.metrics.IncrementOutcome(string(res.Outcome), "")
	return res, nil
}

func flagNames(flags []reviewFlag) []approvalmodels.Flag {
	out := make([]approvalmodels.Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.flag)
	}
	return out
}

// checkCeilings covers the per-transaction and new-account ceilings.
func (s *Service) checkCeilings(req *models.ValidateRequest, now time.Time) *violation {
	if req.Amount.GreaterThan(s.policy.MaxPerTransaction) {
		return &violation{
			code:    dErrors.CodePolicyBlocked,
			reason:  models.ReasonTransactionCeiling,
			message: "payout exceeds the per-transaction limit",
		}
	}
	if req.AccountAge(now) < s.policy.NewAccountAge && req.Amount.GreaterThan(s.policy.NewAccountCeiling) {
		return &violation{
			code:    dErrors.CodePolicyBlocked,
			reason:  models.ReasonNewAccountCeiling,
			message: "payout exceeds the limit for new accounts",
		}
	}
	return nil
}

// checkDailyCount consumes one unit of the daily payout limiter. The limiter
// store increments atomically, so it needs no subject lock.
func (s *Service) checkDailyCount(ctx context.Context, req *models.ValidateRequest) (*violation, error) {
	res, err := s.limiter.Check(ctx, s.policy.DailyLimiter, rlmodels.SubjectKey(req.Subject))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "payout count unavailable").
			WithMeta("reason_code", models.ReasonCountUnavailable)
	}
	if !res.Allowed {
		return &violation{
			code:    dErrors.CodeLimitExceeded,
			reason:  models.ReasonDailyCount,
			message: "daily payout count reached",
			meta:    map[string]any{"remaining": res.Remaining, "reset_at": res.ResetAt},
		}, nil
	}
	return nil, nil
}

// checkWindows covers the rolling 24 hour sum and the calendar month sum,
// collecting the usage figures reused by review flags. Callers hold the
// subject lock.
func (s *Service) checkWindows(ctx context.Context, req *models.ValidateRequest, now time.Time) (models.Usage, *violation, error) {
	var usage models.Usage
	var err error

	dayAgo := now.Add(-24 * time.Hour)
	if usage.Amount24h, err = s.history.SumSince(ctx, req.Subject, dayAgo); err != nil {
		return usage, nil, s.historyError(ctx, err)
	}
	if usage.Amount24h.Add(req.Amount).GreaterThan(s.policy.Rolling24h) {
		return usage, &violation{
			code:    dErrors.CodePolicyBlocked,
			reason:  models.ReasonRolling24h,
			message: "payout exceeds the 24 hour amount limit",
		}, nil
	}

	if usage.AmountMonth, err = s.history.SumSince(ctx, req.Subject, monthStart(now)); err != nil {
		return usage, nil, s.historyError(ctx, err)
	}
	if usage.AmountMonth.Add(req.Amount).GreaterThan(s.policy.Monthly) {
		return usage, &violation{
			code:    dErrors.CodePolicyBlocked,
			reason:  models.ReasonMonthly,
			message: "payout exceeds the monthly amount limit",
		}, nil
	}

	if usage.Count24h, err = s.history.CountSince(ctx, req.Subject, dayAgo); err != nil {
		return usage, nil, s.historyError(ctx, err)
	}
	if usage.LifetimeCount, err = s.history.CountSince(ctx, req.Subject, time.Time{}); err != nil {
		return usage, nil, s.historyError(ctx, err)
	}
	return usage, nil, nil
}

// reviewFlags lists every trigger that sends the payout to a reviewer.
func (s *Service) reviewFlags(req *models.ValidateRequest, usage models.Usage) []reviewFlag {
	var flags []reviewFlag
	if req.Amount.GreaterThanOrEqual(s.policy.ApprovalThreshold) {
		flags = append(flags, reviewFlag{approvalmodels.FlagHighValue, "amount at or above the review threshold"})
	}
	if count := usage.Count24h + 1; count >= s.policy.SuspiciousCount24h {
		flags = append(flags, reviewFlag{approvalmodels.FlagPayoutFrequency, fmt.Sprintf("%d payouts in 24 hours", count)})
	}
	if req.LifetimeEarnings.IsPositive() && req.Amount.GreaterThan(req.LifetimeEarnings.Mul(s.policy.OutsizedFraction)) {
		flags = append(flags, reviewFlag{approvalmodels.FlagOutsizedFraction, "payout is an outsized share of lifetime earnings"})
	}
	if usage.LifetimeCount == 0 && req.Amount.GreaterThanOrEqual(s.policy.LargeFirstPayout) {
		flags = append(flags, reviewFlag{approvalmodels.FlagLargeFirstPayout, "unusually large first payout"})
	}
	return flags
}

func (s *Service) reject(ctx context.Context, span trace.Span, req *models.ValidateRequest, v *violation) error {
	rec, err := s.blocks.Record(ctx, audit.BlockedAttempt{
		Subject:    req.Subject,
		Action:     string(riskmodels.ActionPayoutRequest),
		Source:     audit.SourcePayout,
		ReasonCode: v.reason,
		Message:    v.message,
		PayoutID:   req.PayoutID,
	})
	if err != nil {
		tracing.Fail(span, err, "blocked attempt not recorded")
		return err
	}
	platformaudit.LogAudit(ctx, s.logger, s.auditPublisher, platformaudit.EventPayoutRejected,
		"subject", req.Subject,
		"payout_id", req.PayoutID,
		"reason_code", v.reason,
	)
	s.metrics.IncrementOutcome(string(models.OutcomeRejected), v.reason)

	de := dErrors.New(v.code, v.message).
		WithMeta("reason_code", v.reason).
		WithMeta("blocked_attempt_id", rec.ID)
	for k, val := range v.meta {
		de = de.WithMeta(k, val)
	}
	return de
}

func (s *Service) process(ctx context.Context, req *models.ValidateRequest, now time.Time) (*models.Result, error) {
	if err := s.history.Record(ctx, newPayout(req, models.StatusProcessed, now)); err != nil {
		return nil, s.historyError(ctx, err)
	}
	return &models.Result{
		PayoutID: req.PayoutID,
		Outcome:  models.OutcomeProcessed,
		Message:  "payout accepted for processing",
	}, nil
}

// suspend records the payout as pending and enqueues it for review. It runs
// inside the caller's transaction, so the ledger never holds a pending payout
// without a record.
func (s *Service) suspend(ctx context.Context, req *models.ValidateRequest, usage models.Usage, flags []reviewFlag, now time.Time) (*models.Result, error) {
	enqueue := approvalmodels.EnqueueRequest{
		PayoutID: req.PayoutID,
		Subject:  req.Subject,
		Amount:   req.Amount,
		Snapshot: approvalmodels.Snapshot{
			TrustTier:      req.TrustTier,
			AccountAgeDays: int(req.AccountAge(now) / (24 * time.Hour)),
			Payouts24h:     usage.Count24h + 1,
			Amount24h:      usage.Amount24h.Add(req.Amount),
			AmountMonth:    usage.AmountMonth.Add(req.Amount),
			Lifetime:       req.LifetimeEarnings,
		},
	}
	reasons := make([]string, 0, len(flags))
	for _, f := range flags {
		enqueue.Flags = append(enqueue.Flags, f.flag)
		reasons = append(reasons, f.reason)
	}
	enqueue.Reason = strings.Join(reasons, "; ")

	if err := s.history.Record(ctx, newPayout(req, models.StatusPendingApproval, now)); err != nil {
		return nil, s.historyError(ctx, err)
	}
	record, err := s.approvals.Enqueue(ctx, enqueue)
	if err != nil {
		return nil, err
	}
	return &models.Result{
		PayoutID:   req.PayoutID,
		Outcome:    models.OutcomePendingApproval,
		ApprovalID: record.ID,
		Message:    "payout suspended pending review",
	}, nil
}

func (s *Service) historyError(ctx context.Context, err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "payout already submitted")
	}
	s.logger.ErrorContext(ctx, "payout history unavailable", "error", err)
	return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "payout history unavailable")
}

func newPayout(req *models.ValidateRequest, status models.Status, now time.Time) *models.Payout {
	return &models.Payout{
		ID:        req.PayoutID,
		Subject:   req.Subject,
		Amount:    req.Amount,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
