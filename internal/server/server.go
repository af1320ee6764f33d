// Package server wires the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	analyticshandlers "github.com/Cloud956/wheel-tracker/internal/modules/analytics/handlers"
	settingshandlers "github.com/Cloud956/wheel-tracker/internal/modules/settings/handlers"
	tradinghandlers "github.com/Cloud956/wheel-tracker/internal/modules/trading/handlers"
	wheelhandlers "github.com/Cloud956/wheel-tracker/internal/modules/wheels/handlers"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/events"
)

// Deps carries everything the router needs.
type Deps struct {
	Sync      SyncService
	Wheels    *wheelhandlers.WheelHandlers
	Trading   *tradinghandlers.TradingHandlers
	Settings  *settingshandlers.SettingsHandlers
	Analytics *analyticshandlers.AnalyticsHandlers
	Bus       *events.Bus
	Backup    BackupRunner // nil when backups are disabled
	Databases []*database.DB
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New creates the server with all routes registered
func New(port int, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		log: log.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Account-Owner"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	syncHandlers := newSyncHandlers(deps.Sync, s.log)
	systemHandlers := newSystemHandlers(deps.Databases, deps.Backup, s.log)
	wsHandlers := newEventHandlers(deps.Bus, s.log)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", syncHandlers.HandleTriggerSync)
		r.Get("/sync/last", syncHandlers.HandleLastSync)

		r.Get("/wheels", deps.Wheels.HandleGetWheels)
		r.Get("/history", deps.Trading.HandleGetHistory)
		r.Get("/analytics/summary", deps.Analytics.HandleGetSummary)

		r.Get("/account/settings", deps.Settings.HandleGetSettings)
		r.Post("/account/settings", deps.Settings.HandleUpdateSettings)

		r.Get("/system/status", systemHandlers.HandleStatus)
		r.Get("/system/database/stats", systemHandlers.HandleDatabaseStats)
		r.Post("/system/backup", systemHandlers.HandleTriggerBackup)

		r.Get("/events/ws", wsHandlers.HandleEventStream)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
