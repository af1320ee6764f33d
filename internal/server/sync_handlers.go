package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/services"
)

// SyncService is the slice of the sync pipeline the API needs.
type SyncService interface {
	Run(ctx context.Context, owner string) (*services.SyncReport, error)
	LastReport(owner string) (*services.SyncReport, error)
}

type syncHandlers struct {
	sync SyncService
	log  zerolog.Logger
}

func newSyncHandlers(sync SyncService, log zerolog.Logger) *syncHandlers {
	return &syncHandlers{
		sync: sync,
		log:  log.With().Str("handler", "sync").Logger(),
	}
}

// HandleTriggerSync runs a sync for the requesting owner and returns the
// report. POST /api/sync
func (h *syncHandlers) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	report, err := h.sync.Run(r.Context(), owner)
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		http.Error(w, "Sync already in progress", http.StatusConflict)
		return
	case errors.Is(err, services.ErrNoCredentials):
		http.Error(w, "No flex credentials configured", http.StatusBadRequest)
		return
	case err != nil:
		h.log.Error().Err(err).Str("owner", owner).Msg("Sync failed")
		http.Error(w, "Sync failed", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// HandleLastSync returns the cached report from the owner's most recent run.
// GET /api/sync/last
func (h *syncHandlers) HandleLastSync(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	report, err := h.sync.LastReport(owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to load last sync report")
		http.Error(w, "Failed to load last sync report", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "No sync has run yet", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func ownerFromRequest(r *http.Request) string {
	if owner := r.Header.Get("X-Account-Owner"); owner != "" {
		return owner
	}
	return "default"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
