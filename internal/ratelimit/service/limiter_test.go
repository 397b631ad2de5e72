package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"riskgate/internal/ratelimit/metrics"
	"riskgate/internal/ratelimit/models"
	"riskgate/internal/ratelimit/store/allowlist"
	"riskgate/internal/ratelimit/store/counter"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/circuit"
	"riskgate/pkg/requestcontext"
)

type failingStore struct {
	calls atomic.Int64
}

func (f *failingStore) Increment(context.Context, string, int64, time.Duration) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New("connection refused")
}

func (f *failingStore) Get(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (f *failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

type LimiterSuite struct {
	suite.Suite
	now       time.Time
	ctx       context.Context
	store     *counter.InMemoryCounterStore
	allowlist *allowlist.InMemoryAllowlistStore
	limiter   *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func testLimiters() []models.LimiterConfig {
	return []models.LimiterConfig{
		{Name: "login", Limit: 3, Window: time.Minute, Policy: models.FailOpen},
		{Name: "payout_daily", Limit: 2, Window: 24 * time.Hour, Policy: models.FailClosed},
	}
}

func (s *LimiterSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 10, 0, 15, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = counter.NewInMemoryCounterStore()
	s.allowlist = allowlist.NewInMemoryAllowlistStore()

	l, err := New(s.store, testLimiters(),
		WithAllowlist(s.allowlist),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.limiter = l
}

func (s *LimiterSuite) TestNew() {
	s.Run("requires store", func() {
		_, err := New(nil, testLimiters())
		s.Require().ErrorContains(err, "counter store is required")
	})

	s.Run("rejects limiter without failure policy", func() {
		_, err := New(s.store, []models.LimiterConfig{{Name: "x", Limit: 1, Window: time.Second}})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects duplicates", func() {
		cfg := testLimiters()[0]
		_, err := New(s.store, []models.LimiterConfig{cfg, cfg})
		s.Require().ErrorContains(err, "duplicate limiter")
	})
}

func (s *LimiterSuite) TestCheck() {
	s.Run("admits up to the limit then denies", func() {
		for i := range 3 {
			res, err := s.limiter.Check(s.ctx, "login", "sub_a")
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(2-i, res.Remaining)
		}

		res, err := s.limiter.Check(s.ctx, "login", "sub_a")
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Equal(45, res.RetryAfter)
		s.Equal(time.Date(2026, 5, 1, 10, 1, 0, 0, time.UTC), res.ResetAt.UTC())
	})

	s.Run("keys are independent", func() {
		res, err := s.limiter.Check(s.ctx, "login", "sub_b")
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("next window starts fresh", func() {
		next := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
		res, err := s.limiter.Check(next, "login", "sub_a")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2, res.Remaining)
	})

	s.Run("unknown limiter is denied", func() {
		res, err := s.limiter.Check(s.ctx, "missing", "sub_a")
		s.Require().NoError(err)
		s.False(res.Allowed)
	})

	s.Run("cost counts against the limit", func() {
		res, err := s.limiter.CheckN(s.ctx, "login", "sub_cost", 3)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(0, res.Remaining)

		_, err = s.limiter.CheckN(s.ctx, "login", "sub_cost", 0)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *LimiterSuite) TestAllowlist() {
	entry, err := models.NewAllowlistEntry("sub_ops", "load test", "admin-1", nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.allowlist.Add(s.ctx, entry))

	for range 10 {
		res, err := s.limiter.Check(s.ctx, "login", "sub_ops")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.True(res.Bypassed)
	}

	usage, err := s.limiter.Usage(s.ctx, "login", "sub_ops")
	s.Require().NoError(err)
	s.Zero(usage)
}

func (s *LimiterSuite) TestAllowlistDoesNotBypassFailClosed() {
	entry, err := models.NewAllowlistEntry("sub_ops", "load test", "admin-1", nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.allowlist.Add(s.ctx, entry))

	for range 2 {
		res, err := s.limiter.Check(s.ctx, "payout_daily", "sub_ops")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.False(res.Bypassed)
	}

	res, err := s.limiter.Check(s.ctx, "payout_daily", "sub_ops")
	s.Require().NoError(err)
	s.False(res.Allowed, "an allowlisted subject still hits the daily payout count")
}

func (s *LimiterSuite) TestStoreFailure() {
	store := &failingStore{}
	l, err := New(store, testLimiters(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(100))),
	)
	s.Require().NoError(err)

	s.Run("fail-open limiter admits", func() {
		res, err := l.Check(s.ctx, "login", "sub_a")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.True(res.Degraded)
	})

	s.Run("fail-closed limiter denies with store unavailable", func() {
		res, err := l.Check(s.ctx, "payout_daily", "sub_a")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeStoreUnavailable))
		s.Require().NotNil(res)
		s.False(res.Allowed)
		s.True(res.Degraded)
		s.Positive(res.RetryAfter)
	})
}

func (s *LimiterSuite) TestOpenCircuitSkipsStore() {
	store := &failingStore{}
	l, err := New(store, testLimiters(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithProbeInterval(time.Hour))),
	)
	s.Require().NoError(err)

	for range 5 {
		_, err := l.Check(s.ctx, "payout_daily", "sub_a")
		s.True(dErrors.Is(err, dErrors.CodeStoreUnavailable))
	}
	s.Equal(int64(2), store.calls.Load())
}

func (s *LimiterSuite) TestConcurrentChecksNeverExceedLimit() {
	cfg := []models.LimiterConfig{{Name: "burst", Limit: 25, Window: time.Minute, Policy: models.FailClosed}}
	l, err := New(counter.NewInMemoryCounterStore(), cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			res, err := l.Check(s.ctx, "burst", "sub_race")
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int64(25), allowed.Load())
}

func (s *LimiterSuite) TestReset() {
	for range 3 {
		_, err := s.limiter.Check(s.ctx, "login", "sub_r")
		s.Require().NoError(err)
	}
	s.Require().NoError(s.limiter.Reset(s.ctx, "login", "sub_r"))

	res, err := s.limiter.Check(s.ctx, "login", "sub_r")
	s.Require().NoError(err)
	s.True(res.Allowed)

	s.True(dErrors.Is(s.limiter.Reset(s.ctx, "nope", "sub_r"), dErrors.CodeNotFound))
}
