// Package handler exposes the approval queue to reviewers. Routes are mounted
// behind the admin authorization middleware, which supplies the reviewer.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"riskgate/internal/approval/models"
	"riskgate/internal/approval/service"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/httputil"
	"riskgate/pkg/requestcontext"
)

// Queue is the subset of the approval service the handler needs.
type Queue interface {
	Get(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, f models.Filter) ([]*models.Record, error)
	Resolve(ctx context.Context, id, reviewer string, req models.ResolveRequest) (*service.ResolveResult, error)
}

type Handler struct {
	queue  Queue
	logger *slog.Logger
}

func New(queue Queue, logger *slog.Logger) *Handler {
	return &Handler{queue: queue, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/approvals", h.HandleList)
	r.Get("/admin/approvals/{id}", h.HandleGet)
	r.Post("/admin/approvals/{id}/resolve", h.HandleResolve)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}
	out, err := h.queue.List(r.Context(), models.Filter{
		Status:  status,
		Subject: r.URL.Query().Get("subject"),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"approvals": out})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	reviewer := requestcontext.Reviewer(ctx)
	if reviewer == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "reviewer identity is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := h.queue.Resolve(ctx, id, reviewer, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "approval resolution rejected",
			"request_id", requestID,
			"approval_id", id,
			"reviewer", reviewer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
