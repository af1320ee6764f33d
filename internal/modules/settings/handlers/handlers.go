// Package handlers provides HTTP handlers for account settings.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/modules/settings"
)

// SettingsHandlers contains HTTP handlers for the account settings API
type SettingsHandlers struct {
	repo *settings.Repository
	log  zerolog.Logger
}

// NewSettingsHandlers creates a new settings handlers instance
func NewSettingsHandlers(repo *settings.Repository, log zerolog.Logger) *SettingsHandlers {
	return &SettingsHandlers{
		repo: repo,
		log:  log.With().Str("handler", "settings").Logger(),
	}
}

// settingsView never echoes the full Flex token back to the client.
type settingsView struct {
	Owner          string   `json:"owner"`
	FlexToken      string   `json:"flex_token"`
	FlexQueryID    string   `json:"flex_query_id"`
	ExcludeSymbols []string `json:"exclude_symbols"`
	Configured     bool     `json:"configured"`
}

// HandleGetSettings returns the owner's settings with the token masked
// GET /api/account/settings
func (h *SettingsHandlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	acct, err := h.repo.Get(owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to get account settings")
		http.Error(w, "Failed to get account settings", http.StatusInternalServerError)
		return
	}

	view := settingsView{Owner: owner}
	if acct != nil {
		view.FlexToken = maskToken(acct.FlexToken)
		view.FlexQueryID = acct.FlexQueryID
		view.ExcludeSymbols = acct.ExcludeSymbols
		view.Configured = acct.FlexToken != "" && acct.FlexQueryID != ""
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

type updateRequest struct {
	FlexToken      string   `json:"flex_token"`
	FlexQueryID    string   `json:"flex_query_id"`
	ExcludeSymbols []string `json:"exclude_symbols"`
}

// HandleUpdateSettings stores the owner's settings
// POST /api/account/settings
func (h *SettingsHandlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FlexToken) == "" || strings.TrimSpace(req.FlexQueryID) == "" {
		http.Error(w, "flex_token and flex_query_id are required", http.StatusBadRequest)
		return
	}

	acct := settings.AccountSettings{
		Owner:          owner,
		FlexToken:      strings.TrimSpace(req.FlexToken),
		FlexQueryID:    strings.TrimSpace(req.FlexQueryID),
		ExcludeSymbols: req.ExcludeSymbols,
	}
	if err := h.repo.Upsert(acct); err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to update account settings")
		http.Error(w, "Failed to update account settings", http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("owner", owner).Msg("Account settings updated")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// maskToken keeps the last four characters for recognition.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

func ownerFromRequest(r *http.Request) string {
	if owner := r.Header.Get("X-Account-Owner"); owner != "" {
		return owner
	}
	return "default"
}
