// Package signals defines the signal provider contract and the guard that
// turns provider failures into neutral, explicitly-unavailable sub-scores.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"riskgate/internal/risk/models"
)

// DefaultTimeout bounds a single provider evaluation.
const DefaultTimeout = 2 * time.Second

// ErrUpstreamUnavailable is returned by providers whose data source cannot be reached.
var ErrUpstreamUnavailable = errors.New("signal upstream unavailable")

// Provider scores one risk category. Implementations must be safe for
// concurrent use and must not mutate shared counters.
type Provider interface {
	Category() models.Category
	Evaluate(ctx context.Context, in models.SignalInput) (models.SignalResult, error)
}

// Func adapts a function to Provider.
type Func struct {
	Cat models.Category
	Fn  func(ctx context.Context, in models.SignalInput) (models.SignalResult, error)
}

func (f Func) Category() models.Category { return f.Cat }

func (f Func) Evaluate(ctx context.Context, in models.SignalInput) (models.SignalResult, error) {
	return f.Fn(ctx, in)
}

// UnavailableReason is the reason recorded for a degraded category.
func UnavailableReason(c models.Category) string {
	return fmt.Sprintf("%s signal unavailable", c)
}

// Unavailable builds the neutral result used when a provider cannot answer.
func Unavailable(c models.Category) models.SignalResult {
	return models.SignalResult{
		Category:    c,
		Score:       models.Neutral,
		Reasons:     []string{UnavailableReason(c)},
		Unavailable: true,
	}
}

// LatencyObserver receives per-provider latencies.
type LatencyObserver interface {
	ObserveSignalLatency(category string, d time.Duration)
	IncrementSignalUnavailable(category string)
}

// Guard wraps a provider with a timeout and neutral fallback. Evaluate never
// returns an error.
type Guard struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
	observer LatencyObserver
}

type GuardOption func(*Guard)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

func WithObserver(o LatencyObserver) GuardOption {
	return func(g *Guard) { g.observer = o }
}

// NewGuard wraps p. An already guarded provider is unwrapped first so the
// timeout and observer apply once.
func NewGuard(p Provider, opts ...GuardOption) *Guard {
	if inner, ok := p.(*Guard); ok {
		p = inner.provider
	}
	g := &Guard{provider: p, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Category() models.Category { return g.provider.Category() }

// Evaluate runs the provider in its own goroutine so a provider that ignores
// context cancellation still cannot stall the assessment.
func (g *Guard) Evaluate(ctx context.Context, in models.SignalInput) (models.SignalResult, error) {
	category := g.provider.Category()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		res models.SignalResult
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		res, err := g.provider.Evaluate(ctx, in)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	latency := time.Since(start)
	if g.observer != nil {
		g.observer.ObserveSignalLatency(string(category), latency)
	}

	if out.err != nil {
		if g.observer != nil {
			g.observer.IncrementSignalUnavailable(string(category))
		}
		g.logger.WarnContext(ctx, "signal unavailable",
			"category", string(category),
			"subject", in.Subject,
			"error", out.err,
		)
		res := Unavailable(category)
		res.Latency = latency
		return res, nil
	}

	res := out.res
	res.Category = category
	res.Score = Clamp(res.Score)
	res.Latency = latency
	return res, nil
}

// Clamp bounds a sub-score to 0..100.
func Clamp(score int) int {
	return min(100, max(0, score))
}
