package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"riskgate/internal/challenge"
	"riskgate/internal/gate"
	payoutmodels "riskgate/internal/payout/models"
	rlmodels "riskgate/internal/ratelimit/models"
	"riskgate/internal/risk/models"
	"riskgate/internal/spam"
	dErrors "riskgate/pkg/domain-errors"
)

type stubGate struct {
	out  *gate.Outcome
	err  error
	last gate.Request
}

func (s *stubGate) Evaluate(_ context.Context, req gate.Request) (*gate.Outcome, error) {
	s.last = req
	return s.out, s.err
}

type stubChallenges struct {
	handle string
	in     challenge.VerifyInput
}

func (s *stubChallenges) Verify(_ context.Context, handle string, in challenge.VerifyInput) (*challenge.Challenge, error) {
	s.handle, s.in = handle, in
	return &challenge.Challenge{Handle: handle, State: challenge.StateVerified}, nil
}

type stubPayouts struct{ res *payoutmodels.Result }

func (s *stubPayouts) Validate(_ context.Context, req payoutmodels.ValidateRequest) (*payoutmodels.Result, error) {
	return s.res, nil
}

type stubContent struct {
	subject spam.Subject
	use     spam.Use
}

func (s *stubContent) Analyze(_ context.Context, _ string, subject spam.Subject, use spam.Use) (*spam.Result, error) {
	s.subject = subject
	s.use = use
	return &spam.Result{Action: spam.ActionAllow}, nil
}

type stubValidator struct{}

func (stubValidator) ValidateAdmin(token string) (string, error) {
	if token == "good" {
		return "reviewer-1", nil
	}
	return "", errors.New("bad token")
}

type pingRoutes struct{}

func (pingRoutes) RegisterAdmin(r chi.Router) {
	r.Get("/admin/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

type RouterSuite struct {
	suite.Suite
	gate       *stubGate
	challenges *stubChallenges
	payouts    *stubPayouts
	content    *stubContent
	checks     map[string]Check
	router     http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.gate = &stubGate{}
	s.challenges = &stubChallenges{}
	s.payouts = &stubPayouts{}
	s.content = &stubContent{}
	s.checks = map[string]Check{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = NewRouter(RouterConfig{
		Handler:        NewHandler(s.gate, s.challenges, s.payouts, s.content, s.checks, logger),
		AdminValidator: stubValidator{},
		Admin:          []AdminRoutes{pingRoutes{}},
		Logger:         logger,
	})
}

func (s *RouterSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestReady() {
	s.Run("all checks pass", func() {
		s.checks["redis"] = func(context.Context) error { return nil }
		rec := s.do(http.MethodGet, "/readyz", "", nil)
		s.Equal(http.StatusOK, rec.Code)
	})
	s.Run("failing check", func() {
		s.checks["postgres"] = func(context.Context) error { return errors.New("down") }
		rec := s.do(http.MethodGet, "/readyz", "", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		deps := s.decode(rec)["dependencies"].(map[string]any)
		s.Equal("unavailable", deps["postgres"])
		s.NotContains(deps, "redis")
	})
}

func (s *RouterSuite) TestEvaluate() {
	s.Run("unknown action", func() {
		rec := s.do(http.MethodPost, "/v1/actions/evaluate", `{"subject":"u1","action":"teleport"}`, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("allowed action carries connection facts", func() {
		s.gate.out = &gate.Outcome{
			Decision:     models.DecisionAllow,
			Level:        models.LevelAllow,
			AssessmentID: "as-1",
			RateLimit:    &rlmodels.RateLimitResult{Allowed: true, Limit: 10, Remaining: 9, ResetAt: time.Unix(1_800_000_000, 0)},
		}
		s.gate.err = nil
		rec := s.do(http.MethodPost, "/v1/actions/evaluate", `{"subject":" u1 ","action":"LOGIN"}`, map[string]string{
			"X-Forwarded-For":      "198.51.100.7",
			"User-Agent":           "Mozilla/5.0",
			"X-Device-Fingerprint": "fp-abc",
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("allow", s.decode(rec)["decision"])
		s.Equal("9", rec.Header().Get("X-RateLimit-Remaining"))

		in := s.gate.last.Input
		s.Equal("u1", in.Subject)
		s.Equal(models.ActionLogin, in.Action)
		s.Equal("198.51.100.7", in.IP)
		s.Equal("Mozilla/5.0", in.UserAgent)
		s.Equal("fp-abc", in.Fingerprint.Hash)
		s.False(in.Now.IsZero())
	})

	s.Run("rate limited", func() {
		s.gate.out = &gate.Outcome{
			RateLimit: &rlmodels.RateLimitResult{Allowed: false, Limit: 10, ResetAt: time.Unix(1_800_000_000, 0), RetryAfter: 30},
		}
		s.gate.err = dErrors.New(dErrors.CodeLimitExceeded, "too many requests").WithMeta("retry_after", 30)
		rec := s.do(http.MethodPost, "/v1/actions/evaluate", `{"subject":"u1","action":"login"}`, nil)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("30", rec.Header().Get("Retry-After"))
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	s.Run("blocked", func() {
		s.gate.out = nil
		s.gate.err = dErrors.New(dErrors.CodePolicyBlocked, "action denied").WithMeta("reason_code", gate.ReasonRiskBlocked)
		rec := s.do(http.MethodPost, "/v1/actions/evaluate", `{"subject":"u1","action":"register"}`, nil)
		s.Equal(http.StatusForbidden, rec.Code)
		body := s.decode(rec)
		s.Equal("policy_blocked", body["error"])
		s.Equal("risk_blocked", body["reason_code"])
	})
}

func (s *RouterSuite) TestVerifyChallenge() {
	rec := s.do(http.MethodPost, "/v1/challenges/h-123/verify", `{"token":"tok"}`, map[string]string{"X-Real-IP": "192.0.2.4"})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("h-123", s.challenges.handle)
	s.Equal("192.0.2.4", s.challenges.in.RemoteIP)
	s.Equal("tok", s.challenges.in.Token)
}

func (s *RouterSuite) TestValidatePayout() {
	body := `{"payout_id":"p-1","subject":"u1","amount":"6000","account_created_at":"2024-01-01T00:00:00Z","lifetime_earnings":"50000"}`

	s.Run("pending approval is accepted", func() {
		s.payouts.res = &payoutmodels.Result{PayoutID: "p-1", Outcome: payoutmodels.OutcomePendingApproval, ApprovalID: "ap-1"}
		rec := s.do(http.MethodPost, "/v1/payouts/validate", body, nil)
		s.Equal(http.StatusAccepted, rec.Code)
		s.Equal("ap-1", s.decode(rec)["approval_id"])
	})

	s.Run("processed", func() {
		s.payouts.res = &payoutmodels.Result{PayoutID: "p-1", Outcome: payoutmodels.OutcomeProcessed}
		rec := s.do(http.MethodPost, "/v1/payouts/validate", body, nil)
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *RouterSuite) TestAnalyzeContent() {
	s.Run("fresh account analyzed as new tier", func() {
		created := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		rec := s.do(http.MethodPost, "/v1/content/analyze", `{"subject":"u1","content":"hello there","trust":{"account_created_at":"`+created+`"}}`, nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("u1", s.content.subject.ID)
		s.Equal(models.TierNew, s.content.subject.Tier)
		s.Equal(spam.UsePreview, s.content.use, "previews never record the content")
	})

	s.Run("empty content", func() {
		rec := s.do(http.MethodPost, "/v1/content/analyze", `{"subject":"u1","content":"  "}`, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *RouterSuite) TestAdminRequiresToken() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/ping", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/ping", "", map[string]string{"Authorization": "Bearer nope"}).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodGet, "/admin/ping", "", map[string]string{"Authorization": "Bearer good"}).Code)
}
