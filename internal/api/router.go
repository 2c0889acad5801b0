// Package api provides the HTTP API for SmartRunning.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api/handler"
	"github.com/smartrunning/smartrunning/internal/api/middleware"
	"github.com/smartrunning/smartrunning/internal/api/response"
	"github.com/smartrunning/smartrunning/internal/auth"
	"github.com/smartrunning/smartrunning/internal/track"
)

// rootMessage is served on GET /.
const rootMessage = "SmartRunning API is running!"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger      zerolog.Logger
	ServiceName string
	RequireTLS  bool

	// Metrics records HTTP metrics (optional).
	Metrics *middleware.Metrics
	// MetricsHandler serves GET /metrics (optional).
	MetricsHandler http.Handler

	AuthService *auth.Service
	Activities  *activity.Service
	Tracks      *activity.Tracks
	Exporter    *track.Exporter
	Ops         handler.OpsConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "smartrunning-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Ops)
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Logger)
	routeHandler := handler.NewRouteHandler(cfg.Activities, cfg.Exporter, cfg.Logger)
	activityHandler := handler.NewActivityHandler(cfg.Activities, cfg.Tracks, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthPolicy)
	routeRateLimit := middleware.RateLimitByUser(middleware.RoutePolicy)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardPolicy)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.Text(w, r, http.StatusOK, rootMessage)
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Route("/auth", func(r chi.Router) {
			r.With(authRateLimit).Post("/register", authHandler.Register)
			r.With(authRateLimit).Post("/login", authHandler.Login)
			r.With(authRateLimit).Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(standardRateLimit)
				r.Post("/logout-all", authHandler.LogoutAll)
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
			})
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Use(authMiddleware)

			// Route synthesis may block on geocoding and the street network.
			r.With(routeRateLimit).Post("/generate", routeHandler.Generate)
			r.With(routeRateLimit).Post("/generate/gpx", routeHandler.GenerateGPX)

			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", activityHandler.List)
				r.Post("/", activityHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", activityHandler.Get)
					r.Put("/", activityHandler.Update)
					r.Delete("/", activityHandler.Delete)
					r.Get("/gpx", activityHandler.GPX)
				})
			})
		})
	})

	return r
}
