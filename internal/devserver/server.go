package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"medrunner-portal/internal/config"
	"medrunner-portal/internal/database"
	"medrunner-portal/internal/event"
	"medrunner-portal/internal/handler"
	"medrunner-portal/internal/middleware"
	"medrunner-portal/internal/repository"
	"medrunner-portal/internal/router"
	"medrunner-portal/internal/service"
	"medrunner-portal/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	persons     service.PersonStore
	tokens      service.RefreshTokenStore
	emergencies service.EmergencyStore
	blocks      service.BlockStore
}

// Server is the development Medrunner API: the REST surface and realtime hub
// the portal talks to.
type Server struct {
	cfg          *config.ServerConfig
	server       *http.Server
	handler      http.Handler
	hub          *websocket.Hub
	auth         *service.AuthService
	db           *database.DB
	cleanupFuncs []func()
}

// New wires the server. Without a database URL every store is in memory.
func New(ctx context.Context, cfg *config.ServerConfig) (*Server, error) {
	s := &Server{cfg: cfg}

	st, health, err := s.openStores(ctx)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	publisher := service.NewPublisher(bus)
	s.hub = websocket.NewHub(bus)

	s.auth = service.NewAuthService(st.persons, st.tokens, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	personService := service.NewPersonService(st.persons, st.emergencies, st.blocks, publisher)
	emergencyService := service.NewEmergencyService(st.persons, st.emergencies, publisher)
	orgService := service.NewOrgService(service.DefaultPublicOrgSettings(), publisher)

	authMiddleware := middleware.NewAuthMiddleware(s.auth)
	s.handler = router.New(cfg, authMiddleware, router.Handlers{
		Auth:      handler.NewAuthHandler(s.auth, cfg.SecureCookie),
		Client:    handler.NewClientHandler(personService),
		Org:       handler.NewOrgHandler(orgService),
		Emergency: handler.NewEmergencyHandler(emergencyService),
		Hub:       handler.NewHubHandler(s.hub, cfg.CORSOrigins),
		Dev:       handler.NewDevHandler(orgService, personService, emergencyService),
	}, health)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return s, nil
}

func (s *Server) openStores(ctx context.Context) (stores, router.HealthFunc, error) {
	if s.cfg.DatabaseURL == "" {
		slog.Info("no DATABASE_URL; using in-memory stores")
		return stores{
			persons:     repository.NewMemoryPersonRepository(),
			tokens:      repository.NewMemoryTokenRepository(),
			emergencies: repository.NewMemoryEmergencyRepository(),
			blocks:      repository.NewMemoryBlockRepository(),
		}, nil, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, s.cfg.DatabaseURL, s.cfg.DBMaxConns, s.cfg.DBMinConns)
	if err != nil {
		return stores{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return stores{}, nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	s.db = db
	s.cleanupFuncs = append(s.cleanupFuncs, db.Close)
	slog.Info("database ready")

	pool := db.Pool
	return stores{
		persons:     repository.NewPersonRepository(pool),
		tokens:      repository.NewTokenRepository(pool),
		emergencies: repository.NewEmergencyRepository(pool),
		blocks:      repository.NewBlockRepository(pool),
	}, db.Health, nil
}

// Handler exposes the routed API, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the hub and the token janitor until ctx is done, without
// listening. Run uses it; tests that serve Handler themselves call it
// directly.
func (s *Server) Start(ctx context.Context) *errgroup.Group {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})

	group.Go(func() error {
		s.cleanTokens(ctx)
		return nil
	})

	return group
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group := s.Start(ctx)

	group.Go(func() error {
		slog.Info("server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err := group.Wait()
	s.Close()

	slog.Info("server stopped")
	return err
}

// Close releases stores. It is safe to call more than once.
func (s *Server) Close() {
	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}
	s.cleanupFuncs = nil
}

func (s *Server) cleanTokens(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TokenCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.auth.CleanExpired(ctx)
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

// Subscribers reports the live connection count per hub topic.
func (s *Server) Subscribers() map[string]int {
	return s.hub.Subscribers()
}
