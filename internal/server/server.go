// Package server wires the application together: storage, services,
// handlers, middleware and routes, plus startup and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/badge"
	"github.com/sakif/pulse/internal/config"
	"github.com/sakif/pulse/internal/handler"
	"github.com/sakif/pulse/internal/metrics"
	"github.com/sakif/pulse/internal/middleware"
	sqliteRepo "github.com/sakif/pulse/internal/repository/sqlite"
	"github.com/sakif/pulse/internal/service"
)

// Server owns the router and the database connection; the connection is
// closed during shutdown after in-flight requests drain.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain. Each layer receives only what it
// needs: services get the repository interface, handlers get services.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	passwords := auth.NewPasswordService()
	if cfg.BcryptCost > 0 {
		passwords = auth.NewPasswordServiceWithCost(cfg.BcryptCost)
	}

	db, err := sqliteRepo.New(cfg.DBPath, passwords, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	s.setupRoutes(tokens, passwords)
	return s, nil
}

func (s *Server) setupRoutes(tokens *auth.TokenService, passwords *auth.PasswordService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	m := metrics.New()
	renderer := badge.NewClient(s.config.BadgeURL)

	authService := service.NewAuthService(s.db, tokens, passwords, m, s.logger)
	heartbeatService := service.NewHeartbeatService(s.db, m, s.logger)
	statsService := service.NewStatsService(s.db, s.logger)
	projectService := service.NewProjectService(s.db, s.logger)
	badgeService := service.NewBadgeService(s.db, renderer, m, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	heartbeatHandler := handler.NewHeartbeatHandler(heartbeatService, tokens, s.logger)
	statsHandler := handler.NewStatsHandler(statsService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, s.logger)
	badgeHandler := handler.NewBadgeHandler(badgeService, s.logger)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", m.Handler())

	// public badge endpoints; the link id is the capability
	s.router.Get("/badge/{linkID}", badgeHandler.HandleBadgeImage)
	s.router.Get("/badge/{linkID}/activity", badgeHandler.HandleBadgeActivity)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/refresh", authHandler.HandleRefresh)
			r.Post("/logout", authHandler.HandleLogout)
		})

		// session-gated: the handlers validate the access token themselves
		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", authHandler.HandleCreateApiToken)
			r.Get("/", authHandler.HandleListApiTokens)
			r.Delete("/{token}", authHandler.HandleDeleteApiToken)
			r.Put("/{token}", authHandler.HandleRenameApiToken)
		})

		r.Post("/heartbeats/import", heartbeatHandler.HandleImport)

		// API-token-gated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireApiToken())

			r.Post("/heartbeats", heartbeatHandler.HandleIngest)

			r.Get("/stats", statsHandler.HandleStats)
			r.Get("/timeline", statsHandler.HandleTimeline)
			r.Get("/leaderboards", statsHandler.HandleLeaderboards)
			r.Post("/durations", statsHandler.HandleDurations)
			r.Get("/today", statsHandler.HandleToday)

			r.Get("/projects", projectHandler.HandleListProjects)
			r.Get("/projects/{project}/stats", statsHandler.HandleProjectStats)
			r.Get("/projects/{project}/tags", projectHandler.HandleGetTags)
			r.Put("/projects/{project}/tags", projectHandler.HandleSetTags)
			r.Get("/tags", projectHandler.HandleListTags)
			r.Get("/tags/{tag}/stats", statsHandler.HandleTagStats)

			r.Post("/badges", badgeHandler.HandleCreateLink)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
