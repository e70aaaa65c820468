// Package api exposes the gate resolver to the routing shell over HTTP: a
// one-shot target resolution, the live flags with their forced route, and
// notification endpoints for navigation and session changes.
package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/gate"
	"github.com/wifeyapp/appgate/internal/logging"
	"github.com/wifeyapp/appgate/internal/session"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Resolver   *gate.Resolver
	Supervisor *gate.Supervisor
	Cache      *cache.Cache
	Sessions   *session.Store
	Log        logging.Logger
}

// NewRouter creates and configures a chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	h := newGateHandler(deps)

	r.Get("/health", h.Health)
	r.Route("/v1/gate", func(r chi.Router) {
		r.Get("/target", h.Target)
		r.Get("/flags", h.Flags)
		r.Post("/navigation", h.Navigation)
		r.Post("/onboarding-seen", h.MarkOnboardingSeen)
		r.Put("/user", h.PutUser)
		r.Post("/session", h.SetSession)
		r.Delete("/session", h.ClearSession)
	})

	return r
}
