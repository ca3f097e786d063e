package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rolelink/rolelink/internal/bindings"
	"github.com/rolelink/rolelink/internal/groups"
	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/observability"
	"github.com/rolelink/rolelink/internal/ranks"
	"github.com/rolelink/rolelink/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	IdentityHandler *identity.Handler
	BindingsHandler *bindings.Handler
	GuildsHandler   *guilds.Handler
	RanksHandler    *ranks.Handler
	GroupsHandler   *groups.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.IdentityHandler.MountRoutes)

		if params.GroupsHandler != nil {
			r.Route("/groups", params.GroupsHandler.MountRoutes)
		}

		// Everything below requires a live session.
		r.Group(func(r chi.Router) {
			r.Use(params.IdentityHandler.Authenticate)
			r.Route("/bindings", params.BindingsHandler.MountRoutes)
			if params.RanksHandler != nil {
				r.Route("/ranks", params.RanksHandler.MountRoutes)
			}
			params.GuildsHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
