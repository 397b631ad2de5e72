// Package middleware applies named limiters to HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"riskgate/internal/ratelimit/models"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/httputil"
	"riskgate/pkg/platform/privacy"
	"riskgate/pkg/requestcontext"
)

// RateLimiter is the subset of the limiter service the middleware needs.
type RateLimiter interface {
	Check(ctx context.Context, name, key string) (*models.RateLimitResult, error)
}

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests on the client address resolved by the metadata middleware.
func ByClientIP(r *http.Request) string {
	return models.IPKey(requestcontext.ClientIP(r.Context()))
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit enforces the named limiter. Denied requests get 429; a fail-closed
// limiter with an unavailable store yields 503.
func (m *Middleware) RateLimit(name string, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := m.limiter.Check(ctx, name, key(r))
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"limiter", name,
					"error", err,
					"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
				)
				if result != nil && result.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				}
				httputil.WriteError(w, err)
				return
			}

			AddHeaders(w, result)
			if !result.Allowed {
				WriteExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AddHeaders writes the X-RateLimit-* headers for result.
func AddHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil || result.Bypassed {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteExceeded writes the 429 envelope with Retry-After.
func WriteExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteError(w, dErrors.New(dErrors.CodeLimitExceeded, "too many requests, try again later").
		WithMeta("limiter", result.Name).
		WithMeta("retry_after", result.RetryAfter))
}
