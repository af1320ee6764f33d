// Package handlers provides HTTP handlers for execution history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/modules/trading"
)

// TradingHandlers contains HTTP handlers for the execution history API
type TradingHandlers struct {
	tradeRepo *trading.Repository
	log       zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(tradeRepo *trading.Repository, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		tradeRepo: tradeRepo,
		log:       log.With().Str("handler", "trading").Logger(),
	}
}

// HandleGetHistory returns the most recent executions
// GET /api/history
func (h *TradingHandlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	trades, err := h.tradeRepo.GetHistory(owner, limit)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to get execution history")
		http.Error(w, "Failed to get execution history", http.StatusInternalServerError)
		return
	}

	count, err := h.tradeRepo.CountByOwner(owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to count executions")
		http.Error(w, "Failed to count executions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"trades": trades,
		"total":  count,
	})
}

func ownerFromRequest(r *http.Request) string {
	if owner := r.Header.Get("X-Account-Owner"); owner != "" {
		return owner
	}
	return "default"
}
