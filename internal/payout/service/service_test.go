package service

//go:generate mockgen -source=../ports/ports.go -destination=mocks/mocks.go -package=mocks History,Limiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	approvalmodels "riskgate/internal/approval/models"
	approvalservice "riskgate/internal/approval/service"
	approvalstore "riskgate/internal/approval/store"
	"riskgate/internal/audit"
	"riskgate/internal/payout/models"
	"riskgate/internal/payout/service/mocks"
	"riskgate/internal/payout/store"
	rlmodels "riskgate/internal/ratelimit/models"
	rlservice "riskgate/internal/ratelimit/service"
	"riskgate/internal/ratelimit/store/counter"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/requestcontext"
)

var now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

type ValidatorSuite struct {
	suite.Suite
	ctx       context.Context
	logger    *slog.Logger
	history   *store.InMemoryStore
	blocks    *audit.InMemoryStore
	approvals *approvalservice.Service
	svc       *Service
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.history = store.NewInMemoryStore()
	s.blocks = audit.NewInMemoryStore()

	limiter, err := rlservice.New(counter.NewInMemoryCounterStore(), rlmodels.DefaultLimiters(), rlservice.WithLogger(s.logger))
	s.Require().NoError(err)
	blockLog, err := audit.NewLog(s.blocks, s.logger)
	s.Require().NoError(err)
	s.approvals, err = approvalservice.New(approvalstore.NewInMemoryStore(), NewProcessor(s.history, s.logger),
		approvalservice.WithLogger(s.logger))
	s.Require().NoError(err)

	s.svc, err = New(DefaultPolicy(), s.history, limiter, s.approvals, blockLog, WithLogger(s.logger))
	s.Require().NoError(err)
}

func established(id string, amount int64) models.ValidateRequest {
	return models.ValidateRequest{
		PayoutID:         id,
		Subject:          "user-1",
		Amount:           decimal.NewFromInt(amount),
		AccountCreatedAt: now.AddDate(-1, 0, 0),
		LifetimeEarnings: decimal.NewFromInt(100_000),
		TrustTier:        "trusted",
	}
}

func (s *ValidatorSuite) seed(id string, amount int64, status models.Status, at time.Time) {
	s.Require().NoError(s.history.Record(s.ctx, &models.Payout{
		ID: id, Subject: "user-1", Amount: decimal.NewFromInt(amount), Status: status, CreatedAt: at,
	}))
}

func (s *ValidatorSuite) pending() []*approvalmodels.Record {
	records, err := s.approvals.List(s.ctx, approvalmodels.Filter{Status: approvalmodels.StatusPending})
	s.Require().NoError(err)
	return records
}

func (s *ValidatorSuite) requireRejected(err error, code dErrors.Code, reason string) {
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(code, de.Code)
	s.Equal(reason, de.Meta["reason_code"])
	s.NotEmpty(de.Meta["blocked_attempt_id"])
}

func (s *ValidatorSuite) TestNewAccountCeiling() {
	req := established("po-1", 1500)
	req.AccountCreatedAt = now.AddDate(0, 0, -2)

	res, err := s.svc.Validate(s.ctx, req)
	s.Nil(res)
	s.requireRejected(err, dErrors.CodePolicyBlocked, models.ReasonNewAccountCeiling)
	s.Empty(s.pending(), "a hard rejection never creates an approval record")

	attempts, err := s.blocks.List(s.ctx, audit.Filter{Subject: "user-1"})
	s.Require().NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(audit.SourcePayout, attempts[0].Source)
	s.Equal("po-1", attempts[0].PayoutID)

	_, err = s.history.Get(s.ctx, "po-1")
	s.Error(err)
}

func (s *ValidatorSuite) TestNewAccountAtCeilingProcessed() {
	req := established("po-1", 1000)
	req.AccountCreatedAt = now.AddDate(0, 0, -2)
	res, err := s.svc.Validate(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(models.OutcomeProcessed, res.Outcome)
}

func (s *ValidatorSuite) TestPerTransactionCeiling() {
	_, err := s.svc.Validate(s.ctx, established("po-1", 10_001))
	s.requireRejected(err, dErrors.CodePolicyBlocked, models.ReasonTransactionCeiling)
}

func (s *ValidatorSuite) TestApprovalThreshold() {
	s.seed("old", 100, models.StatusReleased, now.AddDate(0, -2, 0))

	res, err := s.svc.Validate(s.ctx, established("po-1", 6000))
	s.Require().NoError(err)
	s.Equal(models.OutcomePendingApproval, res.Outcome)
	s.NotEmpty(res.ApprovalID)

	records := s.pending()
	s.Require().Len(records, 1)
	s.Equal([]approvalmodels.Flag{approvalmodels.FlagHighValue}, records[0].Flags)
	s.Equal(res.ApprovalID, records[0].ID)
	s.Equal("trusted", records[0].Snapshot.TrustTier)
	s.Equal(1, records[0].Snapshot.Payouts24h)

	payout, err := s.history.Get(s.ctx, "po-1")
	s.Require().NoError(err)
	s.Equal(models.StatusPendingApproval, payout.Status)

	s.Run("approval releases the payout", func() {
		_, err := s.approvals.Resolve(s.ctx, res.ApprovalID, "admin-1", approvalmodels.ResolveRequest{Decision: approvalmodels.DecisionApprove})
		s.Require().NoError(err)
		payout, err := s.history.Get(s.ctx, "po-1")
		s.Require().NoError(err)
		s.Equal(models.StatusReleased, payout.Status)
	})
}

func (s *ValidatorSuite) TestBelowApprovalThresholdProcessed() {
	s.seed("old", 100, models.StatusReleased, now.AddDate(0, -2, 0))
	res, err := s.svc.Validate(s.ctx, established("po-1", 4999))
	s.Require().NoError(err)
	s.Equal(models.OutcomeProcessed, res.Outcome)
	s.Empty(s.pending())
}

func (s *ValidatorSuite) TestFifthPayoutInDayFlagged() {
	for i, id := range []string{"po-1", "po-2", "po-3", "po-4"} {
		ctx := requestcontext.WithTime(s.ctx, now.Add(time.Duration(i-4)*time.Hour))
		res, err := s.svc.Validate(ctx, established(id, 100))
		s.Require().NoError(err)
		s.Equal(models.OutcomeProcessed, res.Outcome, id)
	}

	res, err := s.svc.Validate(s.ctx, established("po-5", 100))
	s.Require().NoError(err)
	s.Equal(models.OutcomePendingApproval, res.Outcome)

	records := s.pending()
	s.Require().Len(records, 1)
	s.Equal([]approvalmodels.Flag{approvalmodels.FlagPayoutFrequency}, records[0].Flags)
	s.Equal(5, records[0].Snapshot.Payouts24h)
}

// slowHistory widens the gap between reading window sums and recording.
type slowHistory struct {
	*store.InMemoryStore
}

func (h slowHistory) SumSince(ctx context.Context, subject string, since time.Time) (decimal.Decimal, error) {
	time.Sleep(5 * time.Millisecond)
	return h.InMemoryStore.SumSince(ctx, subject, since)
}

func (s *ValidatorSuite) TestConcurrentPayoutsRespectRolling24h() {
	s.seed("old", 100, models.StatusReleased, now.AddDate(0, -2, 0))
	limiter, err := rlservice.New(counter.NewInMemoryCounterStore(), rlmodels.DefaultLimiters(), rlservice.WithLogger(s.logger))
	s.Require().NoError(err)
	blockLog, err := audit.NewLog(s.blocks, s.logger)
	s.Require().NoError(err)
	svc, err := New(DefaultPolicy(), slowHistory{s.history}, limiter, s.approvals, blockLog, WithLogger(s.logger))
	s.Require().NoError(err)

	var (
		mu       sync.Mutex
		outcomes = map[models.Outcome]int{}
		rejected int
	)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			res, err := svc.Validate(s.ctx, established(fmt.Sprintf("po-%d", i), 3000))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				de, ok := dErrors.As(err)
				if ok && de.Meta["reason_code"] == models.ReasonRolling24h {
					rejected++
				}
				return
			}
			outcomes[res.Outcome]++
		})
	}
	wg.Wait()

	s.Equal(4, outcomes[models.OutcomeProcessed])
	s.Equal(2, outcomes[models.OutcomePendingApproval], "the fifth and sixth payout in a day go to review")
	s.Equal(4, rejected)

	sum, err := s.history.SumSince(s.ctx, "user-1", now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(18_000).Equal(sum), "24h sum %s", sum)
	s.LessOrEqual(sum.IntPart(), DefaultPolicy().Rolling24h.IntPart())
}

func (s *ValidatorSuite) TestRolling24hCeiling() {
	s.seed("a", 9000, models.StatusProcessed, now.Add(-3*time.Hour))
	s.seed("b", 9000, models.StatusPendingApproval, now.Add(-2*time.Hour))
	s.seed("stale", 9000, models.StatusProcessed, now.Add(-25*time.Hour))
	s.seed("failed", 9000, models.StatusFailed, now.Add(-time.Hour))

	_, err := s.svc.Validate(s.ctx, established("po-1", 2001))
	s.requireRejected(err, dErrors.CodePolicyBlocked, models.ReasonRolling24h)

	res, err := s.svc.Validate(s.ctx, established("po-2", 2000))
	s.Require().NoError(err)
	s.Equal(models.OutcomeProcessed, res.Outcome)
}

func (s *ValidatorSuite) TestMonthlyCeiling() {
	s.seed("prev-month", 9000, models.StatusProcessed, time.Date(2026, 4, 30, 23, 0, 0, 0, time.UTC))
	for i, day := range []int{2, 5, 8, 11, 14} {
		s.seed("may-"+string(rune('a'+i)), 9500, models.StatusReleased, time.Date(2026, 5, day, 9, 0, 0, 0, time.UTC))
	}

	_, err := s.svc.Validate(s.ctx, established("po-1", 3000))
	s.requireRejected(err, dErrors.CodePolicyBlocked, models.ReasonMonthly)

	res, err := s.svc.Validate(s.ctx, established("po-2", 2500))
	s.Require().NoError(err)
	s.Equal(models.OutcomeProcessed, res.Outcome)
}

func (s *ValidatorSuite) TestReviewFlags() {
	s.Run("outsized share of lifetime earnings", func() {
		s.SetupTest()
		s.seed("old", 50, models.StatusReleased, now.AddDate(0, -2, 0))
		req := established("po-1", 600)
		req.LifetimeEarnings = decimal.NewFromInt(1000)
		_, err := s.svc.Validate(s.ctx, req)
		s.Require().NoError(err)
		s.Require().Len(s.pending(), 1)
		s.Equal([]approvalmodels.Flag{approvalmodels.FlagOutsizedFraction}, s.pending()[0].Flags)
	})

	s.Run("large first payout", func() {
		s.SetupTest()
		_, err := s.svc.Validate(s.ctx, established("po-1", 2500))
		s.Require().NoError(err)
		s.Require().Len(s.pending(), 1)
		s.Equal([]approvalmodels.Flag{approvalmodels.FlagLargeFirstPayout}, s.pending()[0].Flags)
	})
}

func (s *ValidatorSuite) TestRejectedReviewStopsCounting() {
	s.seed("old", 100, models.StatusReleased, now.AddDate(0, -2, 0))
	res, err := s.svc.Validate(s.ctx, established("po-1", 9000))
	s.Require().NoError(err)
	s.Require().Equal(models.OutcomePendingApproval, res.Outcome)

	_, err = s.approvals.Resolve(s.ctx, res.ApprovalID, "admin-1",
		approvalmodels.ResolveRequest{Decision: approvalmodels.DecisionReject, Notes: "mismatched bank details"})
	s.Require().NoError(err)

	payout, err := s.history.Get(s.ctx, "po-1")
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, payout.Status)

	sum, err := s.history.SumSince(s.ctx, "user-1", now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.True(sum.IsZero())
}

func (s *ValidatorSuite) TestDuplicatePayout() {
	s.seed("old", 100, models.StatusReleased, now.AddDate(0, -2, 0))
	_, err := s.svc.Validate(s.ctx, established("po-1", 100))
	s.Require().NoError(err)
	_, err = s.svc.Validate(s.ctx, established("po-1", 100))
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ValidatorSuite) TestInvalidRequest() {
	req := established("po-1", 0)
	_, err := s.svc.Validate(s.ctx, req)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))

	req = established("po-1", 10)
	req.Amount = decimal.RequireFromString("10.001")
	_, err = s.svc.Validate(s.ctx, req)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}

func (s *ValidatorSuite) TestDailyCount() {
	ctrl := gomock.NewController(s.T())
	history := mocks.NewMockHistory(ctrl)
	limiter := mocks.NewMockLimiter(ctrl)
	blockLog, err := audit.NewLog(s.blocks, s.logger)
	s.Require().NoError(err)
	svc, err := New(DefaultPolicy(), history, limiter, s.approvals, blockLog, WithLogger(s.logger))
	s.Require().NoError(err)

	s.Run("count reached", func() {
		limiter.EXPECT().Check(gomock.Any(), rlmodels.LimiterPayoutDaily, "sub_user-1").
			Return(&rlmodels.RateLimitResult{Allowed: false, Remaining: 0, ResetAt: now.Add(time.Hour)}, nil)

		_, err := svc.Validate(s.ctx, established("po-1", 100))
		s.requireRejected(err, dErrors.CodeLimitExceeded, models.ReasonDailyCount)
		de, _ := dErrors.As(err)
		s.Equal(0, de.Meta["remaining"])
	})

	s.Run("counter store down fails closed without a block record", func() {
		before, err := s.blocks.List(s.ctx, audit.Filter{Subject: "user-1"})
		s.Require().NoError(err)
		limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&rlmodels.RateLimitResult{Allowed: false}, dErrors.New(dErrors.CodeStoreUnavailable, "counter store unavailable"))

		_, err = svc.Validate(s.ctx, established("po-2", 100))
		s.True(dErrors.Is(err, dErrors.CodeStoreUnavailable))
		after, err := s.blocks.List(s.ctx, audit.Filter{Subject: "user-1"})
		s.Require().NoError(err)
		s.Len(after, len(before))
	})

	s.Run("history outage is store unavailable", func() {
		limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&rlmodels.RateLimitResult{Allowed: true, Remaining: 9}, nil)
		history.EXPECT().LockSubject(gomock.Any(), "user-1").Return(nil)
		history.EXPECT().SumSince(gomock.Any(), "user-1", gomock.Any()).
			Return(decimal.Zero, errors.New("connection refused"))

		_, err := svc.Validate(s.ctx, established("po-3", 100))
		s.True(dErrors.Is(err, dErrors.CodeStoreUnavailable))
	})
}

func (s *ValidatorSuite) TestSubjectLockFailure() {
	ctrl := gomock.NewController(s.T())
	history := mocks.NewMockHistory(ctrl)
	limiter := mocks.NewMockLimiter(ctrl)
	blockLog, err := audit.NewLog(s.blocks, s.logger)
	s.Require().NoError(err)
	svc, err := New(DefaultPolicy(), history, limiter, s.approvals, blockLog, WithLogger(s.logger))
	s.Require().NoError(err)

	limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&rlmodels.RateLimitResult{Allowed: true, Remaining: 9}, nil)
	history.EXPECT().LockSubject(gomock.Any(), "user-1").Return(errors.New("lock timeout"))

	_, err = svc.Validate(s.ctx, established("po-1", 100))
	s.True(dErrors.Is(err, dErrors.CodeStoreUnavailable))
}

func (s *ValidatorSuite) TestPolicyValidate() {
	p := DefaultPolicy()
	s.NoError(p.Validate())

	p.NewAccountCeiling = decimal.NewFromInt(20_000)
	s.Error(p.Validate())

	p = DefaultPolicy()
	p.OutsizedFraction = decimal.NewFromInt(2)
	s.Error(p.Validate())

	_, err := New(p, s.history, nil, s.approvals, nil)
	s.Error(err)
}

func (s *ValidatorSuite) TestProcessor() {
	p := NewProcessor(s.history, s.logger)
	s.True(dErrors.Is(p.Release(s.ctx, "missing"), dErrors.CodeNotFound))

	s.seed("po-1", 100, models.StatusProcessed, now)
	s.True(dErrors.Is(p.Fail(s.ctx, "po-1", "rejected"), dErrors.CodeConflict))
}
