// Package service implements the risk orchestrator: it fans signal providers
// out in parallel, fuses their sub-scores into one level, and records the
// assessment before the caller sees it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"riskgate/internal/audit"
	"riskgate/internal/platform/tracing"
	"riskgate/internal/risk/metrics"
	"riskgate/internal/risk/models"
	"riskgate/internal/risk/ports"
	"riskgate/internal/signals"
	dErrors "riskgate/pkg/domain-errors"
	platformaudit "riskgate/pkg/platform/audit"
	"riskgate/pkg/platform/privacy"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

const (
	ReasonPolicyBlocked = "policy_blocked"
	reasonPartialSignal = "partial signal coverage on sensitive action"
	blockedMessage      = "this action was denied by risk policy"
)

type Service struct {
	cfg            Config
	providers      []*signals.Guard
	store          ports.AssessmentStore
	blocks         ports.BlockLog
	activity       ports.ActivityRecorder
	tx             ports.TxRunner
	logger         *slog.Logger
	auditPublisher platformaudit.Emitter
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p platformaudit.Emitter) Option {
	return func(s *Service) { s.auditPublisher = p }
}

// WithActivityRecorder feeds each assessed action into the velocity series.
func WithActivityRecorder(r ports.ActivityRecorder) Option {
	return func(s *Service) { s.activity = r }
}

// WithTxRunner groups the assessment and blocked-attempt writes.
func WithTxRunner(tx ports.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

type directRunner struct{}

func (directRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// New wraps every provider in a guard. Each weighted category needs exactly
// one provider.
func New(cfg Config, providers []signals.Provider, store ports.AssessmentStore, blocks ports.BlockLog, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config: %w", err)
	}
	if store == nil {
		return nil, errors.New("assessment store is required")
	}
	if blocks == nil {
		return nil, errors.New("block log is required")
	}

	s := &Service{
		cfg:    cfg,
		store:  store,
		blocks: blocks,
		tx:     directRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	seen := make(map[models.Category]bool, len(providers))
	for _, p := range providers {
		cat := p.Category()
		if _, weighted := cfg.Weights[cat]; !weighted {
			return nil, fmt.Errorf("provider %s has no weight", cat)
		}
		if seen[cat] {
			return nil, fmt.Errorf("duplicate provider for %s", cat)
		}
		seen[cat] = true
		guardOpts := []signals.GuardOption{
			signals.WithTimeout(cfg.SignalTimeout),
			signals.WithLogger(s.logger),
		}
		if s.metrics != nil {
			guardOpts = append(guardOpts, signals.WithObserver(s.metrics))
		}
		s.providers = append(s.providers, signals.NewGuard(p, guardOpts...))
	}
	for cat := range cfg.Weights {
		if !seen[cat] {
			return nil, fmt.Errorf("no provider for weighted category %s", cat)
		}
	}
	return s, nil
}

// Config returns the active scoring policy.
func (s *Service) Config() Config {
	return s.cfg
}

// Assess scores one action. The returned assessment has already been
// persisted; if it cannot be, the call fails with store_unavailable.
func (s *Service) Assess(ctx context.Context, in models.SignalInput) (*models.Assessment, error) {
	start := time.Now()
	if in.Subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if !in.Action.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown action")
	}
	if in.Now.IsZero() {
		in.Now = requestcontext.Now(ctx)
	}

	ctx, span := tracing.StartSpan(ctx, "risk.Assess",
		tracing.Subject(in.Subject), tracing.Action(string(in.Action)))
	defer span.End()

	factors := s.gatherSignals(ctx, in)
	a := s.decide(ctx, in, factors)
	span.SetAttributes(tracing.Score(a.Score), tracing.Level(string(a.Level)))

	if err := s.persist(ctx, a); err != nil {
		tracing.Fail(span, err, "assessment not recorded")
		return nil, err
	}

	if s.activity != nil {
		if err := s.activity.Record(ctx, in.Subject, in.IP, in.Action, in.Now); err != nil {
			s.logger.WarnContext(ctx, "failed to record velocity activity",
				"subject", in.Subject,
				"action", string(in.Action),
				"error", err,
			)
		}
	}

	s.metrics.IncrementAssessment(string(a.Action), string(a.Level))
	s.metrics.ObserveAssessLatency(time.Since(start))
	return a.Clone(), nil
}

// gatherSignals evaluates every provider concurrently. Guards never return
// errors, so the group only joins.
func (s *Service) gatherSignals(ctx context.Context, in models.SignalInput) []models.SignalResult {
	results := make([]models.SignalResult, len(s.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.providers {
		g.Go(func() error {
			res, _ := p.Evaluate(gctx, in)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) decide(ctx context.Context, in models.SignalInput, factors []models.SignalResult) *models.Assessment {
	score := s.cfg.Composite(factors)
	level := s.cfg.LevelFor(score)

	var reasons []string
	var unavailable []string
	for _, f := range factors {
		reasons = append(reasons, f.Reasons...)
		if f.Unavailable {
			unavailable = append(unavailable, string(f.Category))
		}
	}
	if len(unavailable) > 0 && s.cfg.Sensitive[in.Action] {
		if biased := models.Stricter(level, models.LevelSoftChallenge); biased != level {
			level = biased
			reasons = append(reasons, reasonPartialSignal)
		}
		platformaudit.LogAudit(ctx, s.logger, s.auditPublisher, platformaudit.EventSignalUnavailable,
			"subject", in.Subject,
			"action", string(in.Action),
			"categories", unavailable,
		)
	}

	return &models.Assessment{
		ID:        uuid.NewString(),
		Subject:   in.Subject,
		Action:    in.Action,
		Score:     score,
		Level:     level,
		Decision:  models.DecisionFor(level),
		Factors:   factors,
		Reasons:   uniqueReasons(reasons),
		IPPrefix:  privacy.AnonymizeIP(in.IP),
		RequestID: requestcontext.RequestID(ctx),
		CreatedAt: in.Now,
	}
}

// persist writes the assessment and, for blocks, the blocked attempt in one
// unit so neither exists without the other.
func (s *Service) persist(ctx context.Context, a *models.Assessment) error {
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, a); err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}
		if a.Level != models.LevelBlock {
			return nil
		}
		_, err := s.blocks.Record(ctx, audit.BlockedAttempt{
			Subject:      a.Subject,
			Action:       string(a.Action),
			Source:       audit.SourceAssessment,
			ReasonCode:   ReasonPolicyBlocked,
			Message:      blockedMessage,
			Reasons:      a.Reasons,
			Score:        a.Score,
			AssessmentID: a.ID,
			IPPrefix:     a.IPPrefix,
			CreatedAt:    a.CreatedAt,
		})
		return err
	})
	if err != nil {
		s.metrics.IncrementPersistFailure()
		s.logger.ErrorContext(ctx, "failed to persist assessment",
			"subject", a.Subject,
			"action", string(a.Action),
			"level", string(a.Level),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to record risk decision")
	}
	if a.Level == models.LevelBlock {
		platformaudit.LogAudit(ctx, s.logger, s.auditPublisher, platformaudit.EventAssessmentBlocked,
			"subject", a.Subject,
			"action", string(a.Action),
			"assessment_id", a.ID,
			"reason_code", ReasonPolicyBlocked,
		)
	}
	return nil
}

// Get returns one stored assessment.
func (s *Service) Get(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "assessment not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assessment")
	}
	return a, nil
}

// History lists assessments newest first.
func (s *Service) History(ctx context.Context, f models.AssessmentFilter) ([]*models.Assessment, error) {
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assessments")
	}
	return out, nil
}

// uniqueReasons drops blank and repeated reasons, keeping first-seen order.
func uniqueReasons(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
