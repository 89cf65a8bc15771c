package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/sorobai/backend/app"
	"github.com/upb/sorobai/backend/handlers"
	"github.com/upb/sorobai/backend/middleware"
	"github.com/upb/sorobai/backend/utils"
)

// SetupRoutes configures all application routes and middleware.
// No router-wide timeout is set: the pipeline bounds each request itself and
// streamed answers outlive any fixed write deadline.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	// CORS middleware
	origins := cfg.Server.AllowedOrigins
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: !allowsAnyOrigin(origins),
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(
		deps.Store,
		deps.Fragments,
		deps.Metrics,
		deps.Audit,
		handlers.BuildInfo{
			Version:        cfg.Version,
			Environment:    cfg.Environment,
			StoreDriver:    cfg.Store.Driver,
			GenerationLLM:  deps.Inference.Model(),
			EmbeddingModel: deps.Embedder.Model(),
			AuthEnabled:    deps.AuthMiddleware.Enabled(),
		},
		deps.Logger,
	)
	inference := handlers.NewInferenceHandler(deps.Inference, deps.Logger)
	requests := handlers.NewRequestLogHandler(deps.ChatRequests, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", health.HandleStatus)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			// Generation endpoints share the per-client budget
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.Limit)
				r.Post("/ask", inference.HandleAsk)
				r.Post("/chat", inference.HandleChat)
			})

			r.Post("/validate", inference.HandleValidate)

			// Request log (require admin role)
			r.Route("/requests", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(middleware.RoleAdmin))
				r.Get("/", requests.HandleList)
				r.Get("/{id}", requests.HandleGet)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
			Error:   "method_not_allowed",
			Message: r.Method + " is not supported on " + r.URL.Path,
		})
	})

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
