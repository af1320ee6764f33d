package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Cloud956/wheel-tracker/internal/database"
)

// BackupRunner triggers one backup cycle.
type BackupRunner interface {
	Backup(ctx context.Context) error
}

type systemHandlers struct {
	databases []*database.DB
	backup    BackupRunner
	startedAt time.Time
	log       zerolog.Logger
}

func newSystemHandlers(databases []*database.DB, backup BackupRunner, log zerolog.Logger) *systemHandlers {
	return &systemHandlers{
		databases: databases,
		backup:    backup,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleStatus returns host and process health
// GET /api/system/status
func (h *systemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_percent"] = vm.UsedPercent
		status["memory_used_mb"] = vm.Used / 1024 / 1024
	}
	if usage, err := disk.Usage("/"); err == nil {
		status["disk_percent"] = usage.UsedPercent
	}

	dbHealth := make(map[string]string, len(h.databases))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			dbHealth[db.Name()] = err.Error()
			continue
		}
		dbHealth[db.Name()] = "ok"
	}
	status["databases"] = dbHealth

	respondJSON(w, http.StatusOK, status)
}

// HandleDatabaseStats returns size and page statistics per database
// GET /api/system/database/stats
func (h *systemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))
	for _, db := range h.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("db", db.Name()).Msg("Failed to get database stats")
			http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
			return
		}
		stats[db.Name()] = map[string]int64{
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

// HandleTriggerBackup runs a backup cycle now
// POST /api/system/backup
func (h *systemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		http.Error(w, "Backups are not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.backup.Backup(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
