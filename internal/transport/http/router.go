// Package httptransport assembles the HTTP router.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "platewatch/internal/platform/middleware"
	"platewatch/internal/transport/http/shared"
)

// Registerer mounts a handler's routes on the API router.
type Registerer interface {
	Register(chi.Router)
}

// NewRouter wires middleware, operational endpoints, and the API handlers.
// limiter may be nil when inbound rate limiting is disabled.
func NewRouter(logger *slog.Logger, limiter *platformmw.ClientLimiter, health func(context.Context) error, handlers ...Registerer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(platformmw.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := health(ctx); err != nil {
			shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if limiter != nil {
			api.Use(limiter.Handler)
		}
		for _, h := range handlers {
			h.Register(api)
		}
	})

	return r
}
