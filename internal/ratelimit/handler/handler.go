// Package handler exposes rate limit administration endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"riskgate/internal/ratelimit/models"
	"riskgate/internal/ratelimit/ports"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/platform/httputil"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// Resetter clears a limiter window.
type Resetter interface {
	Reset(ctx context.Context, name, key string) error
}

type Handler struct {
	allowlist ports.AllowlistStore
	limiter   Resetter
	logger    *slog.Logger
}

func New(allowlist ports.AllowlistStore, limiter Resetter, logger *slog.Logger) *Handler {
	return &Handler{allowlist: allowlist, limiter: limiter, logger: logger}
}

// RegisterAdmin mounts the endpoints on an admin-protected router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/rate-limit/allowlist", h.HandleListAllowlist)
	r.Post("/admin/rate-limit/allowlist", h.HandleAddAllowlist)
	r.Delete("/admin/rate-limit/allowlist/{identifier}", h.HandleRemoveAllowlist)
	r.Post("/admin/rate-limit/reset", h.HandleReset)
}

func (h *Handler) HandleAddAllowlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.AddAllowlistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entry, err := models.NewAllowlistEntry(req.Identifier, req.Reason, requestcontext.Reviewer(ctx), req.ExpiresAt, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error()))
		return
	}
	if err := h.allowlist.Add(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to add allowlist entry", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add allowlist entry"))
		return
	}
	h.logger.InfoContext(ctx, "allowlist entry added",
		"request_id", requestID,
		"identifier", entry.Identifier,
		"created_by", entry.CreatedBy,
	)
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) HandleRemoveAllowlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := chi.URLParam(r, "identifier")
	if err := h.allowlist.Remove(ctx, identifier); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "allowlist entry not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove allowlist entry"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListAllowlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.allowlist.List(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list allowlist"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ResetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.limiter.Reset(ctx, req.Limiter, req.Key); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rate limit reset",
		"request_id", requestID,
		"limiter", req.Limiter,
		"key", req.Key,
	)
	w.WriteHeader(http.StatusNoContent)
}
