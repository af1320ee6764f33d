// Package trading persists the raw broker execution trail.
package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Repository stores executions in the ledger database. The table is
// append-only: rows are inserted once, keyed by (owner, trade_id), and a
// re-sync of the same execution is ignored.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new execution repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "executions").Logger(),
	}
}

// SaveAll inserts a batch of executions, skipping ids already present.
// Returns the number of newly stored rows.
func (r *Repository) SaveAll(owner string, trades []domain.Trade) (int, error) {
	inserted := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO executions
				(owner, trade_id, symbol, asset_class, put_call, strike,
				 quantity, price, commission, executed_at, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range trades {
			var strike sql.NullFloat64
			if t.Strike != nil {
				strike = sql.NullFloat64{Float64: *t.Strike, Valid: true}
			}
			res, err := stmt.Exec(owner, t.ID, t.Symbol, string(t.AssetClass),
				string(t.Right), strike, t.Quantity, t.Price, t.Commission,
				t.ExecutedAt.Unix(), t.Description)
			if err != nil {
				return fmt.Errorf("failed to insert execution %s: %w", t.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetAllByOwner returns the owner's full execution history, oldest first.
func (r *Repository) GetAllByOwner(owner string) ([]domain.Trade, error) {
	return r.query(`
		SELECT trade_id, symbol, asset_class, put_call, strike,
		       quantity, price, commission, executed_at, description
		FROM executions
		WHERE owner = ?
		ORDER BY executed_at ASC, trade_id ASC`, owner)
}

// GetHistory returns the most recent executions, newest first.
func (r *Repository) GetHistory(owner string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(`
		SELECT trade_id, symbol, asset_class, put_call, strike,
		       quantity, price, commission, executed_at, description
		FROM executions
		WHERE owner = ?
		ORDER BY executed_at DESC, trade_id DESC
		LIMIT ?`, owner, limit)
}

// CountByOwner returns the number of stored executions for an owner.
func (r *Repository) CountByOwner(owner string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM executions WHERE owner = ?`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return count, nil
}

func (r *Repository) query(q string, args ...interface{}) ([]domain.Trade, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t          domain.Trade
			assetClass string
			putCall    string
			strike     sql.NullFloat64
			executedAt int64
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &assetClass, &putCall, &strike,
			&t.Quantity, &t.Price, &t.Commission, &executedAt, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		t.AssetClass = domain.AssetClass(assetClass)
		t.Right = domain.OptionRight(putCall)
		if strike.Valid {
			s := strike.Float64
			t.Strike = &s
		}
		t.ExecutedAt = time.Unix(executedAt, 0).UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution rows: %w", err)
	}
	return trades, nil
}

// MapByID indexes a trade slice by id, for wheel rehydration.
func MapByID(trades []domain.Trade) map[string]domain.Trade {
	out := make(map[string]domain.Trade, len(trades))
	for _, t := range trades {
		out[t.ID] = t
	}
	return out
}
