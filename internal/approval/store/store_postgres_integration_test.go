//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"riskgate/internal/approval/models"
	"riskgate/internal/approval/store"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgresStore(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "payout_approvals"))
}

func (s *PostgresStoreSuite) TestConcurrentResolveFirstWins() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &models.Record{
		ID:          "7a3f1c2e-0000-4000-8000-000000000001",
		PayoutID:    "po-1",
		Subject:     "user-1",
		Amount:      decimal.RequireFromString("6000.00"),
		Reason:      "high value",
		Flags:       []models.Flag{models.FlagHighValue},
		Snapshot:    models.Snapshot{TrustTier: "trusted", AccountAgeDays: 400},
		Status:      models.StatusPending,
		RequestedAt: now,
	}
	s.Require().NoError(s.store.Create(s.ctx, rec))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			status := models.StatusApproved
			if i%2 == 0 {
				status = models.StatusRejected
			}
			_, err := s.store.Resolve(s.ctx, rec.ID, models.Resolution{
				Status: status, ReviewedBy: "admin", Notes: "n", ReviewedAt: now,
			})
			if err == nil {
				wins.Add(1)
				return
			}
			s.ErrorIs(err, sentinel.ErrConflict)
		})
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())

	got, err := s.store.Get(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.NotEqual(models.StatusPending, got.Status)
	s.True(rec.Amount.Equal(got.Amount))
	s.Equal(400, got.Snapshot.AccountAgeDays)

	pending, err := s.store.List(s.ctx, models.Filter{Status: models.StatusPending})
	s.Require().NoError(err)
	s.Empty(pending)
}
