package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medrunner-portal/internal/config"
	"medrunner-portal/internal/handler"
	"medrunner-portal/internal/middleware"
)

// Handlers groups the route handlers of the development API.
type Handlers struct {
	Auth      *handler.AuthHandler
	Client    *handler.ClientHandler
	Org       *handler.OrgHandler
	Emergency *handler.EmergencyHandler
	Hub       *handler.HubHandler
	Dev       *handler.DevHandler
}

// HealthFunc reports whether backing stores are reachable.
type HealthFunc func(ctx context.Context) error

func New(cfg *config.ServerConfig, authMiddleware *middleware.AuthMiddleware, h Handlers, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The hub connection is long-lived and must not be buffered by Timeout.
	r.With(authMiddleware.RequireAuth).Get("/hub/emergency", h.Hub.Emergency)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signin", h.Auth.SignIn)
			auth.Post("/exchange", h.Auth.Exchange)
			auth.Post("/logout", h.Auth.Logout)
		})

		api.Route("/client", func(client chi.Router) {
			client.Use(authMiddleware.RequireAuth)
			client.Get("/", h.Client.Me)
			client.Post("/link", h.Client.Link)
			client.Put("/settings", h.Client.UpdateSettings)
			client.Get("/blocked", h.Client.Blocked)
			client.Get("/history", h.Client.History)
		})

		api.With(authMiddleware.RequireAuth).Get("/orgSettings/public", h.Org.Public)
		api.With(authMiddleware.RequireAuth).Get("/block/user", h.Client.UserBlocks)
		api.With(authMiddleware.RequireAuth).Get("/block/org", h.Client.OrgBlocks)

		api.Route("/emergency", func(emergency chi.Router) {
			emergency.Use(authMiddleware.RequireAuth)
			emergency.With(authMiddleware.RequireLinked).Post("/", h.Emergency.Create)
			emergency.Get("/bulk", h.Emergency.Bulk)
			emergency.Get("/{id}", h.Emergency.Get)
		})

		if cfg.DevRoutes && h.Dev != nil {
			api.Route("/dev", func(dev chi.Router) {
				dev.Put("/orgSettings/public", h.Dev.UpdateOrgSettings)
				dev.Post("/deployments", h.Dev.CreateDeployment)
				dev.Post("/blocks", h.Dev.AddBlock)
				dev.Put("/emergency/{id}", h.Dev.UpdateEmergency)
			})
		}
	})

	return r
}
