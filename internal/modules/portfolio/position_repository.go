// Package portfolio holds the broker's open-position snapshot.
package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Repository stores the position snapshot in the cache database. The
// snapshot carries no history: every sync wipes the owner's rows and writes
// the broker's current view.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new position repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// ReplaceSnapshot atomically swaps the owner's position snapshot.
func (r *Repository) ReplaceSnapshot(owner string, positions []domain.Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM positions WHERE owner = ?`, owner); err != nil {
			return fmt.Errorf("failed to clear position snapshot: %w", err)
		}
		for _, p := range positions {
			_, err := tx.Exec(`
				INSERT INTO positions (owner, symbol, quantity, mark_price, multiplier, updated_at)
				VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'))`,
				owner, p.Symbol, p.Quantity, p.MarkPrice, p.Multiplier)
			if err != nil {
				return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
			}
		}
		return nil
	})
}

// GetByOwner returns the owner's current snapshot.
func (r *Repository) GetByOwner(owner string) ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT symbol, quantity, mark_price, multiplier
		FROM positions
		WHERE owner = ?
		ORDER BY symbol ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.MarkPrice, &p.Multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position rows: %w", err)
	}
	return positions, nil
}

// MarkPriceBySymbol indexes the snapshot for market-value lookups.
func (r *Repository) MarkPriceBySymbol(owner string) (map[string]float64, error) {
	positions, err := r.GetByOwner(owner)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		out[p.Symbol] = p.MarkPrice
	}
	return out, nil
}
