// Package httptransport exposes the public decision endpoints and assembles
// the HTTP router. Handlers translate requests and delegate; the services own
// every decision.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"riskgate/internal/challenge"
	"riskgate/internal/gate"
	payoutmodels "riskgate/internal/payout/models"
	rlmiddleware "riskgate/internal/ratelimit/middleware"
	"riskgate/internal/risk/models"
	"riskgate/internal/signals/trust"
	"riskgate/internal/spam"
	"riskgate/pkg/platform/httputil"
	"riskgate/pkg/requestcontext"
)

type Evaluator interface {
	Evaluate(ctx context.Context, req gate.Request) (*gate.Outcome, error)
}

type ChallengeVerifier interface {
	Verify(ctx context.Context, handle string, in challenge.VerifyInput) (*challenge.Challenge, error)
}

type PayoutValidator interface {
	Validate(ctx context.Context, req payoutmodels.ValidateRequest) (*payoutmodels.Result, error)
}

type ContentAnalyzer interface {
	Analyze(ctx context.Context, content string, subject spam.Subject, use spam.Use) (*spam.Result, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// Handler serves the public API.
type Handler struct {
	gate       Evaluator
	challenges ChallengeVerifier
	payouts    PayoutValidator
	content    ContentAnalyzer
	checks     map[string]Check
	logger     *slog.Logger
}

func NewHandler(g Evaluator, challenges ChallengeVerifier, payouts PayoutValidator, content ContentAnalyzer, checks map[string]Check, logger *slog.Logger) *Handler {
	return &Handler{
		gate:       g,
		challenges: challenges,
		payouts:    payouts,
		content:    content,
		checks:     checks,
		logger:     logger,
	}
}

func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	fingerprint := req.Fingerprint
	if fingerprint.Hash == "" {
		fingerprint.Hash = requestcontext.DeviceFingerprint(ctx)
	}

	out, err := h.gate.Evaluate(ctx, gate.Request{
		Input: models.SignalInput{
			Subject:     req.Subject,
			Action:      models.Action(req.Action),
			IP:          requestcontext.ClientIP(ctx),
			UserAgent:   requestcontext.UserAgent(ctx),
			Fingerprint: fingerprint,
			Trust:       req.Trust,
			Telemetry:   req.Telemetry,
			Now:         requestcontext.Now(ctx),
		},
		Content: req.Content,
	})
	if out != nil {
		rlmiddleware.AddHeaders(w, out.RateLimit)
	}
	if err != nil {
		if out != nil && out.RateLimit != nil && !out.RateLimit.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(out.RateLimit.RetryAfter))
		}
		h.logger.InfoContext(ctx, "action not allowed",
			"request_id", requestID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleVerifyChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	in, ok := httputil.DecodeAndPrepare[challenge.VerifyInput](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	in.RemoteIP = requestcontext.ClientIP(ctx)

	c, err := h.challenges.Verify(ctx, chi.URLParam(r, "handle"), *in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleValidatePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[payoutmodels.ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.payouts.Validate(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == payoutmodels.OutcomePendingApproval {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, res)
}

func (h *Handler) HandleAnalyzeContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AnalyzeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	profile := trust.Profile(req.Trust, requestcontext.Now(ctx))
	res, err := h.content.Analyze(ctx, req.Content, spam.Subject{ID: req.Subject, Tier: profile.Tier}, spam.UsePreview)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady fails when any configured dependency check fails.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failing := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			failing[name] = "unavailable"
		}
	}
	if len(failing) > 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "dependencies": failing})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
