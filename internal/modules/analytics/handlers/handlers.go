// Package handlers provides HTTP handlers for wheel analytics.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/modules/analytics"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

// WheelLoader rehydrates an owner's wheel collection.
type WheelLoader interface {
	Load(owner string) ([]*wheels.Wheel, error)
}

// AnalyticsHandlers contains HTTP handlers for the analytics API
type AnalyticsHandlers struct {
	loader  WheelLoader
	service *analytics.Service
	log     zerolog.Logger
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(loader WheelLoader, service *analytics.Service, log zerolog.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		loader:  loader,
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleGetSummary returns aggregate wheel statistics
// GET /api/analytics/summary
func (h *AnalyticsHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	ws, err := h.loader.Load(owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to load wheels")
		http.Error(w, "Failed to load wheels", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.service.Summarize(ws))
}

func ownerFromRequest(r *http.Request) string {
	if owner := r.Header.Get("X-Account-Owner"); owner != "" {
		return owner
	}
	return "default"
}
