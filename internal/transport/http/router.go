package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	rlmiddleware "riskgate/internal/ratelimit/middleware"
	rlmodels "riskgate/internal/ratelimit/models"
	"riskgate/pkg/platform/middleware/admin"
	"riskgate/pkg/platform/middleware/metadata"
	"riskgate/pkg/platform/middleware/requesttime"
)

// AdminRoutes is implemented by handlers mounted behind admin authorization.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// RouterConfig carries what the router mounts.
type RouterConfig struct {
	Handler        *Handler
	RateLimit      *rlmiddleware.Middleware
	AdminValidator admin.TokenValidator
	Admin          []AdminRoutes
	Metrics        http.Handler
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimit != nil {
			v1.Use(cfg.RateLimit.RateLimit(rlmodels.LimiterAPI, rlmiddleware.ByClientIP))
		}
		v1.Post("/actions/evaluate", h.HandleEvaluate)
		v1.Post("/payouts/validate", h.HandleValidatePayout)
		v1.Post("/content/analyze", h.HandleAnalyzeContent)
		v1.Group(func(vr chi.Router) {
			if cfg.RateLimit != nil {
				vr.Use(cfg.RateLimit.RateLimit(rlmodels.LimiterChallengeVerify, rlmiddleware.ByClientIP))
			}
			vr.Post("/challenges/{handle}/verify", h.HandleVerifyChallenge)
		})
	})

	r.Group(func(ar chi.Router) {
		ar.Use(admin.RequireAdmin(cfg.AdminValidator, cfg.Logger))
		for _, routes := range cfg.Admin {
			routes.RegisterAdmin(ar)
		}
	})
	return r
}
