package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"riskgate/internal/ratelimit/models"
	"riskgate/internal/ratelimit/service"
	"riskgate/internal/ratelimit/store/allowlist"
	"riskgate/internal/ratelimit/store/counter"
	"riskgate/pkg/testutil"
)

// HandlerSuite drives the admin endpoints with real in-memory stores.
type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	limiter *service.Limiter
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := allowlist.NewInMemoryAllowlistStore()
	limiter, err := service.New(counter.NewInMemoryCounterStore(), models.DefaultLimiters(),
		service.WithAllowlist(store),
		service.WithLogger(logger),
	)
	s.Require().NoError(err)
	s.limiter = limiter

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithReviewer(req, "admin-7"))
		})
	})
	New(store, limiter, logger).RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.JSONRequest(s.T(), method, path, body))
}

func (s *HandlerSuite) TestAddAllowlist() {
	s.Run("invalid json", func() {
		rec := s.do(http.MethodPost, "/admin/rate-limit/allowlist", "not valid json")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing reason", func() {
		rec := s.do(http.MethodPost, "/admin/rate-limit/allowlist", models.AddAllowlistRequest{Identifier: "ip_10.0.0.1"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("records reviewer as creator", func() {
		expires := time.Now().Add(24 * time.Hour)
		rec := s.do(http.MethodPost, "/admin/rate-limit/allowlist", models.AddAllowlistRequest{
			Identifier: " sub_monitor ",
			Reason:     "synthetic checks",
			ExpiresAt:  &expires,
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var entry models.AllowlistEntry
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&entry))
		s.Equal("sub_monitor", entry.Identifier)
		s.Equal("admin-7", entry.CreatedBy)
		s.NotNil(entry.ExpiresAt)
	})
}

func (s *HandlerSuite) TestListAndRemove() {
	rec := s.do(http.MethodPost, "/admin/rate-limit/allowlist", models.AddAllowlistRequest{Identifier: "ip_10.0.0.1", Reason: "office"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/admin/rate-limit/allowlist", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var entries []*models.AllowlistEntry
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&entries))
	s.Len(entries, 1)

	rec = s.do(http.MethodDelete, "/admin/rate-limit/allowlist/ip_10.0.0.1", nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/admin/rate-limit/allowlist/ip_10.0.0.1", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestReset() {
	ctx := context.Background()
	for range 10 {
		_, err := s.limiter.Check(ctx, models.LimiterLogin, "sub_locked")
		s.Require().NoError(err)
	}
	res, err := s.limiter.Check(ctx, models.LimiterLogin, "sub_locked")
	s.Require().NoError(err)
	s.Require().False(res.Allowed)

	rec := s.do(http.MethodPost, "/admin/rate-limit/reset", models.ResetRequest{Limiter: models.LimiterLogin, Key: "sub_locked"})
	s.Require().Equal(http.StatusNoContent, rec.Code)

	res, err = s.limiter.Check(ctx, models.LimiterLogin, "sub_locked")
	s.Require().NoError(err)
	s.True(res.Allowed)

	rec = s.do(http.MethodPost, "/admin/rate-limit/reset", models.ResetRequest{Limiter: "unknown", Key: "k"})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/admin/rate-limit/reset", "{")
	s.Equal(http.StatusBadRequest, rec.Code)
}
