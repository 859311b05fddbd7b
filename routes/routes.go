package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/access-control-plane/app"
	"github.com/upb/access-control-plane/handlers"
	"github.com/upb/access-control-plane/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	dashboards := handlers.NewDashboardHandler(deps.SavedObjects, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// Application routes. The interceptor derives app:<appID> from the path;
	// a caller without the privilege gets the same not-found response as a
	// caller hitting an app that does not exist.
	r.Route("/app/{appID}", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.Interceptor.Enforce)
		r.Get("/", handlers.AppHandler(deps))
		r.Get("/*", handlers.AppHandler(deps))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/status", handlers.StatusHandler(deps))
		r.Get("/security/mode", handlers.SecurityModeHandler(deps))

		// Capability map; anonymous callers get an all-disabled map
		r.With(deps.AuthMiddleware.OptionalAuth).
			Get("/capabilities", handlers.CapabilitiesHandler(deps))

		// Dashboards. Route tags name the api operation the interceptor
		// requires; tags must be mounted before Enforce.
		r.Route("/dashboards", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.Group(func(r chi.Router) {
				r.Use(deps.Interceptor.Tags("access:read"))
				r.Use(deps.Interceptor.Enforce)
				r.Get("/", dashboards.HandleListDashboards)
				r.Get("/{id}", dashboards.HandleGetDashboard)
			})

			r.Group(func(r chi.Router) {
				r.Use(deps.Interceptor.Tags("access:write"))
				r.Use(deps.Interceptor.Enforce)
				r.Post("/", dashboards.HandleCreateDashboard)
				r.Post("/_bulk_create", dashboards.HandleBulkCreateDashboards)
				r.Put("/{id}", dashboards.HandleUpdateDashboard)
			})

			r.Group(func(r chi.Router) {
				r.Use(deps.Interceptor.Tags("access:delete"))
				r.Use(deps.Interceptor.Enforce)
				r.Delete("/{id}", dashboards.HandleDeleteDashboard)
			})
		})
	})

	// 404 handler. Denied requests are written with the same body, so a
	// missing route and a forbidden one are indistinguishable to callers.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	return r
}
