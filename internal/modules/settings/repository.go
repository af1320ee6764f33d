// Package settings stores per-owner account configuration.
package settings

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// AccountSettings holds one owner's broker report credentials and filters.
type AccountSettings struct {
	Owner          string   `json:"owner"`
	FlexToken      string   `json:"flex_token"`
	FlexQueryID    string   `json:"flex_query_id"`
	ExcludeSymbols []string `json:"exclude_symbols"`
}

// Repository persists account settings in the config database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "settings").Logger(),
	}
}

// Get returns an owner's settings, or nil when none are stored.
func (r *Repository) Get(owner string) (*AccountSettings, error) {
	var (
		s       AccountSettings
		exclude string
	)
	err := r.db.QueryRow(`
		SELECT owner, flex_token, flex_query_id, exclude_symbols
		FROM account_settings
		WHERE owner = ?`, owner).Scan(&s.Owner, &s.FlexToken, &s.FlexQueryID, &exclude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account settings: %w", err)
	}
	s.ExcludeSymbols = splitSymbols(exclude)
	return &s, nil
}

// Upsert stores an owner's settings, replacing any existing row.
func (r *Repository) Upsert(s AccountSettings) error {
	_, err := r.db.Exec(`
		INSERT INTO account_settings (owner, flex_token, flex_query_id, exclude_symbols, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(owner) DO UPDATE SET
			flex_token = excluded.flex_token,
			flex_query_id = excluded.flex_query_id,
			exclude_symbols = excluded.exclude_symbols,
			updated_at = excluded.updated_at`,
		s.Owner, s.FlexToken, s.FlexQueryID, joinSymbols(s.ExcludeSymbols))
	if err != nil {
		return fmt.Errorf("failed to upsert account settings: %w", err)
	}
	return nil
}

// ListOwners returns every owner with a settings row, for scheduled syncs.
func (r *Repository) ListOwners() ([]string, error) {
	rows, err := r.db.Query(`SELECT owner FROM account_settings ORDER BY owner ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan owner row: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owner rows: %w", err)
	}
	return owners, nil
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}

func joinSymbols(symbols []string) string {
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			upper = append(upper, strings.ToUpper(trimmed))
		}
	}
	return strings.Join(upper, ",")
}
