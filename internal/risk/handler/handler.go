// Package handler exposes assessment and blocked-attempt history to admins.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"riskgate/internal/audit"
	"riskgate/internal/risk/models"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/httputil"
)

// History reads stored assessments.
type History interface {
	Get(ctx context.Context, id string) (*models.Assessment, error)
	History(ctx context.Context, f models.AssessmentFilter) ([]*models.Assessment, error)
}

// BlockedAttempts reads the forensic log.
type BlockedAttempts interface {
	List(ctx context.Context, f audit.Filter) ([]*audit.BlockedAttempt, error)
}

type Handler struct {
	history History
	blocked BlockedAttempts
	logger  *slog.Logger
}

func New(history History, blocked BlockedAttempts, logger *slog.Logger) *Handler {
	return &Handler{history: history, blocked: blocked, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/assessments", h.HandleListAssessments)
	r.Get("/admin/assessments/{id}", h.HandleGetAssessment)
	r.Get("/admin/blocked-attempts", h.HandleListBlocked)
}

func (h *Handler) HandleListAssessments(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.history.History(r.Context(), models.AssessmentFilter{
		Subject: q.subject, Since: q.since, Until: q.until, Limit: q.limit,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"assessments": out})
}

func (h *Handler) HandleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleListBlocked(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if q.subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject is required"))
		return
	}
	out, err := h.blocked.List(r.Context(), audit.Filter{
		Subject: q.subject, Since: q.since, Until: q.until, Limit: q.limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list blocked attempts", "subject", q.subject, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"blocked_attempts": out})
}

type historyQuery struct {
	subject      string
	since, until time.Time
	limit        int
}

func parseQuery(v url.Values) (historyQuery, error) {
	q := historyQuery{subject: v.Get("subject")}
	var err error
	if s := v.Get("since"); s != "" {
		if q.since, err = time.Parse(time.RFC3339, s); err != nil {
			return q, dErrors.New(dErrors.CodeBadRequest, "since must be RFC3339")
		}
	}
	if s := v.Get("until"); s != "" {
		if q.until, err = time.Parse(time.RFC3339, s); err != nil {
			return q, dErrors.New(dErrors.CodeBadRequest, "until must be RFC3339")
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.limit, err = strconv.Atoi(s); err != nil || q.limit < 0 {
			return q, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
	}
	return q, nil
}
