// Package api exposes the autopilot over HTTP: health, engine state, the
// journal, snapshot push, simulator control and the /ws feed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yegors/atc-autopilot/pkg/logger"
)

// Router wires the handlers onto a chi mux
type Router struct {
	handler        *Handler
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Dependencies, logger *logger.Logger) *Router {
	var origins []string
	if deps.Config != nil {
		origins = deps.Config.Server.CORSAllowedOrigins
	}
	return &Router{
		handler:        NewHandler(deps, logger),
		allowedOrigins: origins,
		logger:         logger.Named("api-router"),
	}
}

// Routes returns the HTTP handler for every endpoint
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	if len(rt.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/state", h.GetState)
		r.Get("/counters", h.GetCounters)
		r.Get("/config", h.GetConfig)
		r.Get("/layout", h.GetLayout)

		// Journal
		r.Get("/cycles", h.GetCycles)
		r.Get("/commands", h.GetCommands)
		r.Get("/events", h.GetEvents)

		// Snapshot push from an external scraper
		r.Post("/snapshot", h.PostSnapshot)

		r.Route("/simulation/aircraft", func(r chi.Router) {
			r.Get("/", h.GetSimulatedAircraft)
			r.Post("/", h.CreateSimulatedAircraft)
			r.Post("/{callsign}/command", h.CommandSimulatedAircraft)
			r.Delete("/{callsign}", h.RemoveSimulatedAircraft)
		})
	})

	r.Get("/ws", h.HandleWebSocket)

	return r
}

// requestLogger logs each request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
