package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/dashgate/internal/handlers"
	"github.com/BradenHooton/dashgate/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes. Everything not named
// here is dashboard content behind the gate.
func RegisterRoutes(
	router chi.Router,
	gateHandler *handlers.GateHandler,
	health http.HandlerFunc,
	dashboard http.Handler,
	identify func(http.Handler) http.Handler,
	submitLimit middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	// One limiter shared by both submit routes
	limitSubmits := middleware.RateLimitByIP(submitLimit)

	router.Get("/health", health)

	router.Group(func(r chi.Router) {
		r.Use(identify)
		r.Use(middleware.SameOriginWrites(logger))

		r.Get("/login", gateHandler.LoginPage)
		r.With(limitSubmits).Post("/login", gateHandler.LoginSubmit)

		r.Get("/api/gate", gateHandler.Status)
		r.With(limitSubmits).Post("/api/gate/submit", gateHandler.Submit)

		r.With(gateHandler.Protect).Handle("/*", dashboard)
	})
}
