// Package challenge issues challenge handles for risky actions and verifies
// the client's token with an external provider.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"riskgate/internal/risk/models"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/audit"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

const (
	DefaultTTL           = 5 * time.Minute
	defaultVerifyTimeout = 3 * time.Second
)

var errTokenRequired = dErrors.New(dErrors.CodeInvalidInput, "token is required")

type Engine struct {
	store            Store
	verifier         Verifier
	ttl              time.Duration
	verifyTimeout    time.Duration
	expectedHostname string
	logger           *slog.Logger
	auditPublisher   audit.Emitter
}

type Option func(*Engine)

// WithTTL sets how long an issued handle stays valid.
func WithTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ttl = d
		}
	}
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.verifyTimeout = d
		}
	}
}

// WithExpectedHostname rejects tokens solved on another site.
func WithExpectedHostname(h string) Option {
	return func(e *Engine) { e.expectedHostname = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(e *Engine) { e.auditPublisher = p }
}

func New(store Store, verifier Verifier, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("challenge store is required")
	}
	if verifier == nil {
		return nil, errors.New("challenge verifier is required")
	}
	e := &Engine{
		store:         store,
		verifier:      verifier,
		ttl:           DefaultTTL,
		verifyTimeout: defaultVerifyTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Issue starts a challenge for a soft or hard challenge level.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (*Challenge, error) {
	if req.Level == models.LevelBlock {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "blocked actions cannot be challenged")
	}
	mode, ok := ModeFor(req.Level)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "level does not require a challenge")
	}
	now := requestcontext.Now(ctx)
	c := &Challenge{
		Handle:       "chl_" + uuid.NewString(),
		Subject:      req.Subject,
		Action:       req.Action,
		Mode:         mode,
		State:        StateIssued,
		AssessmentID: req.AssessmentID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(e.ttl),
	}
	if err := e.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to issue challenge")
	}
	audit.LogAudit(ctx, e.logger, e.auditPublisher, audit.EventChallengeIssued,
		"subject", c.Subject,
		"action", string(c.Action),
		"mode", string(c.Mode),
	)
	return c, nil
}

// Get returns the current state of a handle.
func (e *Engine) Get(ctx context.Context, handle string) (*Challenge, error) {
	c, err := e.store.Get(ctx, handle)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "challenge not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to load challenge")
	}
	return c, nil
}

// Verify moves an issued challenge through verifying to verified or failed.
// Anything other than an explicit provider success is a failure, and every
// outcome is final: callers restart with Issue.
func (e *Engine) Verify(ctx context.Context, handle string, in VerifyInput) (*Challenge, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c, err := e.store.Get(ctx, handle)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeChallengeExpired, "challenge is no longer valid, request a new one")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to load challenge")
	}

	switch c.State {
	case StateVerified:
		return nil, dErrors.New(dErrors.CodeChallengeFailed, "challenge was already used")
	case StateFailed:
		return nil, dErrors.New(dErrors.CodeChallengeFailed, "challenge failed, request a new one")
	case StateExpired:
		return nil, dErrors.New(dErrors.CodeChallengeExpired, "challenge expired, request a new one")
	case StateVerifying:
		return nil, dErrors.New(dErrors.CodeChallengeFailed, "challenge verification already in progress")
	}

	now := requestcontext.Now(ctx)
	if !now.Before(c.ExpiresAt) {
		expired := *c
		expired.State = StateExpired
		expired.ResolvedAt = now
		if err := e.store.CompareAndSwap(ctx, StateIssued, &expired); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			e.logger.WarnContext(ctx, "failed to mark challenge expired", "handle", handle, "error", err)
		}
		return nil, dErrors.New(dErrors.CodeChallengeExpired, "challenge expired, request a new one")
	}

	verifying := *c
	verifying.State = StateVerifying
	if err := e.store.CompareAndSwap(ctx, StateIssued, &verifying); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeChallengeFailed, "challenge verification already in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to update challenge")
	}

	resp, verr := e.callProvider(ctx, c, in)
	result := verifying
	result.ResolvedAt = requestcontext.Now(ctx)
	result.State = StateFailed
	if verr == nil {
		result.ErrorCodes = resp.ErrorCodes
		if e.accepts(c, resp) {
			result.State = StateVerified
		}
	}
	if err := e.store.CompareAndSwap(ctx, StateVerifying, &result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "unable to record challenge outcome")
	}

	if result.State != StateVerified {
		reason := "provider rejected token"
		if verr != nil {
			reason = "provider unavailable"
		}
		audit.LogAudit(ctx, e.logger, e.auditPublisher, audit.EventChallengeFailed,
			"subject", c.Subject,
			"action", string(c.Action),
			"reason", reason,
			"error_codes", result.ErrorCodes,
		)
		if verr != nil {
			return nil, dErrors.Wrap(verr, dErrors.CodeChallengeFailed, "challenge could not be verified, request a new one")
		}
		return nil, dErrors.New(dErrors.CodeChallengeFailed, "challenge verification failed").
			WithMeta("error_codes", result.ErrorCodes)
	}

	audit.LogAudit(ctx, e.logger, e.auditPublisher, audit.EventChallengeVerified,
		"subject", c.Subject,
		"action", string(c.Action),
	)
	return &result, nil
}

func (e *Engine) callProvider(ctx context.Context, c *Challenge, in VerifyInput) (*ProviderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	defer cancel()
	resp, err := e.verifier.Verify(ctx, ProviderRequest{
		Token:    in.Token,
		RemoteIP: in.RemoteIP,
		Hostname: in.Hostname,
		Action:   string(c.Action),
	})
	if err != nil {
		return nil, fmt.Errorf("verify challenge token: %w", err)
	}
	if resp == nil {
		return nil, errors.New("verify challenge token: empty provider response")
	}
	return resp, nil
}

func (e *Engine) accepts(c *Challenge, resp *ProviderResponse) bool {
	if !resp.Success {
		return false
	}
	if e.expectedHostname != "" && resp.Hostname != e.expectedHostname {
		return false
	}
	if resp.Action != "" && resp.Action != string(c.Action) {
		return false
	}
	return !slices.Contains(resp.ErrorCodes, "timeout-or-duplicate")
}
