// Command server runs the wheel tracker API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/clients/flex"
	"github.com/Cloud956/wheel-tracker/internal/config"
	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/events"
	"github.com/Cloud956/wheel-tracker/internal/modules/analytics"
	analyticshandlers "github.com/Cloud956/wheel-tracker/internal/modules/analytics/handlers"
	"github.com/Cloud956/wheel-tracker/internal/modules/portfolio"
	"github.com/Cloud956/wheel-tracker/internal/modules/settings"
	settingshandlers "github.com/Cloud956/wheel-tracker/internal/modules/settings/handlers"
	"github.com/Cloud956/wheel-tracker/internal/modules/trading"
	tradinghandlers "github.com/Cloud956/wheel-tracker/internal/modules/trading/handlers"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
	wheelhandlers "github.com/Cloud956/wheel-tracker/internal/modules/wheels/handlers"
	"github.com/Cloud956/wheel-tracker/internal/reliability"
	"github.com/Cloud956/wheel-tracker/internal/scheduler"
	"github.com/Cloud956/wheel-tracker/internal/server"
	"github.com/Cloud956/wheel-tracker/internal/services"
	"github.com/Cloud956/wheel-tracker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// Databases
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		return err
	}
	defer ledgerDB.Close()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		return err
	}
	defer configDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return err
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{ledgerDB, configDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	// Repositories
	tradeRepo := trading.NewRepository(ledgerDB.Conn(), log)
	wheelRepo := wheels.NewRepository(ledgerDB.Conn(), log)
	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	positionRepo := portfolio.NewRepository(cacheDB.Conn(), log)
	runRepo := services.NewRunRepository(cacheDB.Conn(), log)

	// Services
	bus := events.NewBus(log)
	engine := wheels.NewEngine(log)
	flexClient := flex.NewClient(cfg.FlexBaseURL, log)

	syncService := services.NewSyncService(
		flexClient, tradeRepo, wheelRepo, positionRepo, settingsRepo,
		runRepo, bus, engine,
		services.SyncConfig{
			FallbackToken:   cfg.FlexToken,
			FallbackQueryID: cfg.FlexQueryID,
			ExcludeSymbols:  cfg.ExcludeSymbols,
		},
		log,
	)
	wheelQuery := services.NewWheelQueryService(tradeRepo, wheelRepo)
	analyticsService := analytics.NewService(log)

	// Backups (optional)
	var backupService *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			return err
		}
		backupService = reliability.NewBackupService(
			[]reliability.Snapshotter{ledgerDB, configDB, cacheDB},
			s3Client, cfg.Backup.RetentionDays, cfg.Backup.MinKeepBackups, log)
	}

	// Scheduler
	sched := scheduler.New(log)
	if cfg.SyncSchedule != "" {
		if err := sched.AddJob(cfg.SyncSchedule, scheduler.NewSyncJob(syncService, settingsRepo, log)); err != nil {
			return err
		}
	}
	if backupService != nil && cfg.Backup.Schedule != "" {
		if err := sched.AddJob(cfg.Backup.Schedule, scheduler.NewBackupJob(backupService, log)); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	deps := server.Deps{
		Sync:      syncService,
		Wheels:    wheelhandlers.NewWheelHandlers(wheelQuery, positionRepo, log),
		Trading:   tradinghandlers.NewTradingHandlers(tradeRepo, log),
		Settings:  settingshandlers.NewSettingsHandlers(settingsRepo, log),
		Analytics: analyticshandlers.NewAnalyticsHandlers(wheelQuery, analyticsService, log),
		Bus:       bus,
		Databases: []*database.DB{ledgerDB, configDB, cacheDB},
	}
	if backupService != nil {
		deps.Backup = backupService
	}

	srv := server.New(cfg.Port, deps, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
