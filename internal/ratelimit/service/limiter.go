// Package service implements the fixed-window rate limiter.
//
// Each named limiter counts requests per key in windows aligned to
// floor(now/size)*size. The counter store increments atomically, so with N
// concurrent requests against a limit K exactly min(N, K) are admitted. When
// the store fails or its circuit is open, the limiter's declared failure
// policy decides the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"riskgate/internal/ratelimit/metrics"
	"riskgate/internal/ratelimit/models"
	"riskgate/internal/ratelimit/ports"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/audit"
	"riskgate/pkg/platform/circuit"
	"riskgate/pkg/requestcontext"
)

const defaultStoreTimeout = 250 * time.Millisecond

// Limiter checks named limiters against a shared counter store.
type Limiter struct {
	store          ports.CounterStore
	allowlist      ports.AllowlistStore
	limiters       map[string]models.LimiterConfig
	breaker        *circuit.Breaker
	storeTimeout   time.Duration
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(l *Limiter) { l.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func WithAllowlist(store ports.AllowlistStore) Option {
	return func(l *Limiter) { l.allowlist = store }
}

// WithStoreTimeout bounds each counter store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.storeTimeout = d
		}
	}
}

// WithBreaker replaces the default counter store circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		if b != nil {
			l.breaker = b
		}
	}
}

// New builds a limiter over store. Every definition must validate, including
// an explicit failure policy.
func New(store ports.CounterStore, limiters []models.LimiterConfig, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	if len(limiters) == 0 {
		return nil, errors.New("at least one limiter is required")
	}

	l := &Limiter{
		store:        store,
		limiters:     make(map[string]models.LimiterConfig, len(limiters)),
		breaker:      circuit.New("ratelimit-store", circuit.WithProbeInterval(time.Second)),
		storeTimeout: defaultStoreTimeout,
		logger:       slog.Default(),
	}
	for _, cfg := range limiters {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := l.limiters[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate limiter %q", cfg.Name)
		}
		l.limiters[cfg.Name] = cfg
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the definition of a named limiter.
func (l *Limiter) Config(name string) (models.LimiterConfig, bool) {
	cfg, ok := l.limiters[name]
	return cfg, ok
}

// Check consumes one unit of the named limiter for key.
func (l *Limiter) Check(ctx context.Context, name, key string) (*models.RateLimitResult, error) {
	return l.CheckN(ctx, name, key, 1)
}

// CheckN consumes cost units. A fail-closed limiter whose store is unavailable
// returns a denied result together with a store_unavailable error.
func (l *Limiter) CheckN(ctx context.Context, name, key string, cost int) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)
	cfg, ok := l.limiters[name]
	if !ok {
		// Default-deny: unknown limiters never admit traffic.
		audit.LogAudit(ctx, l.logger, l.auditPublisher, audit.EventLimiterMissing,
			"limiter", name,
			"key", key,
		)
		return &models.RateLimitResult{Name: name, ResetAt: now, RetryAfter: 60}, nil
	}
	if cost < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cost must be positive")
	}

	windowStart := models.WindowStart(now, cfg.Window)
	resetAt := windowStart.Add(cfg.Window)

	// Fail-closed limiters guard money movement and are never bypassed.
	if l.allowlist != nil && cfg.Policy == models.FailOpen {
		bypass, err := l.allowlist.IsAllowlisted(ctx, key)
		if err != nil {
			l.logger.WarnContext(ctx, "allowlist lookup failed", "limiter", name, "error", err)
		} else if bypass {
			l.metrics.IncrementBypass(name)
			audit.LogAudit(ctx, l.logger, l.auditPublisher, audit.EventAllowlistBypassed,
				"limiter", name,
				"key", key,
			)
			return &models.RateLimitResult{
				Name: name, Allowed: true, Bypassed: true,
				Limit: cfg.Limit, Remaining: cfg.Limit, ResetAt: resetAt,
			}, nil
		}
	}

	if !l.breaker.Allow() {
		return l.degraded(ctx, cfg, key, resetAt, now, errors.New("counter store circuit open"))
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()
	ttl := resetAt.Sub(now) + time.Second
	count, err := l.store.Increment(storeCtx, models.CounterKey(name, key, windowStart), int64(cost), ttl)
	if err != nil {
		l.metrics.IncrementStoreError(name)
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.metrics.SetBreakerOpen(l.breaker.Name(), true)
			l.logger.ErrorContext(ctx, "counter store circuit opened", "error", err)
		}
		return l.degraded(ctx, cfg, key, resetAt, now, err)
	}
	if _, change := l.breaker.RecordSuccess(); change.Closed {
		l.metrics.SetBreakerOpen(l.breaker.Name(), false)
		l.logger.InfoContext(ctx, "counter store circuit closed")
	}

	result := &models.RateLimitResult{
		Name:      name,
		Allowed:   count <= int64(cfg.Limit),
		Limit:     cfg.Limit,
		Remaining: max(0, cfg.Limit-int(count)),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(resetAt, now)
		l.metrics.IncrementCheck(name, "denied")
		audit.LogAudit(ctx, l.logger, l.auditPublisher, audit.EventRateLimitExceeded,
			"limiter", name,
			"key", key,
			"limit", cfg.Limit,
			"window_seconds", int(cfg.Window.Seconds()),
		)
		return result, nil
	}
	l.metrics.IncrementCheck(name, "allowed")
	return result, nil
}

// degraded applies the limiter's failure policy when the store cannot answer.
func (l *Limiter) degraded(ctx context.Context, cfg models.LimiterConfig, key string, resetAt, now time.Time, cause error) (*models.RateLimitResult, error) {
	result := &models.RateLimitResult{
		Name:     cfg.Name,
		Limit:    cfg.Limit,
		ResetAt:  resetAt,
		Degraded: true,
	}
	audit.LogAudit(ctx, l.logger, l.auditPublisher, audit.EventRateLimitDegraded,
		"limiter", cfg.Name,
		"key", key,
		"policy", string(cfg.Policy),
		"error", cause.Error(),
	)

	if cfg.Policy == models.FailOpen {
		l.metrics.IncrementCheck(cfg.Name, "degraded_open")
		result.Allowed = true
		result.Remaining = cfg.Limit
		return result, nil
	}

	l.metrics.IncrementCheck(cfg.Name, "degraded_closed")
	result.RetryAfter = retryAfterSeconds(resetAt, now)
	return result, dErrors.Wrap(cause, dErrors.CodeStoreUnavailable, "rate limit unavailable, try again later")
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	return max(1, secs)
}

// Reset clears the current window of a limiter for key.
func (l *Limiter) Reset(ctx context.Context, name, key string) error {
	cfg, ok := l.limiters[name]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "unknown limiter")
	}
	windowStart := models.WindowStart(requestcontext.Now(ctx), cfg.Window)
	if err := l.store.Delete(ctx, models.CounterKey(name, key, windowStart)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to reset limiter")
	}
	return nil
}

// Usage reports the current window count without consuming.
func (l *Limiter) Usage(ctx context.Context, name, key string) (int, error) {
	cfg, ok := l.limiters[name]
	if !ok {
		return 0, dErrors.New(dErrors.CodeNotFound, "unknown limiter")
	}
	windowStart := models.WindowStart(requestcontext.Now(ctx), cfg.Window)
	v, err := l.store.Get(ctx, models.CounterKey(name, key, windowStart))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to read limiter")
	}
	return int(v), nil
}
