package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/latticelearn/lattice-api/internal/api"
	apiMiddleware "github.com/latticelearn/lattice-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	reviewHandler := api.NewReviewHandler(app.reviewService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Review workflow
			r.Post("/reviews", reviewHandler.SubmitReview)
			r.Get("/reviews/due", reviewHandler.GetDueReviews)

			// Progress reporting
			r.Get("/domains/{id}/progress", reviewHandler.GetDomainProgress)
			r.Get("/domains/{id}/stats", reviewHandler.GetDomainStats)

			// Manual overrides and authoring tools
			r.Put("/nodes/{nodeType}/{nodeID}/status", reviewHandler.UpdateNodeStatus)
			r.Post("/propagation/test", reviewHandler.TestPropagation)

			// Sessions
			r.Post("/sessions/end", reviewHandler.EndSession)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
