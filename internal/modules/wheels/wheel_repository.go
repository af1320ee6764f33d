package wheels

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/database"
	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Repository persists wheel aggregates in the ledger database. Wheels are
// upserted keyed by (owner, wheel_id); a wheel's trade list is replaced
// wholesale on every save so the stored rows always mirror the aggregate.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new wheel repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "wheels").Logger(),
	}
}

// SaveAll persists the full wheel collection for one owner in a single
// transaction.
func (r *Repository) SaveAll(owner string, ws []*Wheel) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, w := range ws {
			if err := saveWheel(tx, w); err != nil {
				return fmt.Errorf("failed to save wheel %s: %w", w.ID, err)
			}
		}
		return nil
	})
}

func saveWheel(tx *sql.Tx, w *Wheel) error {
	var closedAt sql.NullInt64
	if w.EndDate != nil {
		closedAt = sql.NullInt64{Int64: w.EndDate.Unix(), Valid: true}
	}

	currentCallID := ""
	if w.CurrentSoldCall != nil {
		currentCallID = w.CurrentSoldCall.ID
	}

	active := 0
	if w.IsOpen {
		active = 1
	}

	_, err := tx.Exec(`
		INSERT INTO wheels (owner, wheel_id, symbol, phase, active, strike,
			current_call_id, started_at, closed_at, total_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(owner, wheel_id) DO UPDATE SET
			phase = excluded.phase,
			active = excluded.active,
			current_call_id = excluded.current_call_id,
			closed_at = excluded.closed_at,
			total_pnl = excluded.total_pnl,
			updated_at = excluded.updated_at`,
		w.Owner, w.ID, w.Symbol, string(w.Phase), active, w.Strike,
		currentCallID, w.StartDate.Unix(), closedAt, w.TotalPnL)
	if err != nil {
		return fmt.Errorf("failed to upsert wheel row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM wheel_trades WHERE owner = ? AND wheel_id = ?`,
		w.Owner, w.ID); err != nil {
		return fmt.Errorf("failed to clear wheel trades: %w", err)
	}

	for seq, ct := range w.Trades {
		_, err := tx.Exec(`
			INSERT INTO wheel_trades (owner, wheel_id, seq, trade_id, category, related_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			w.Owner, w.ID, seq, ct.Trade.ID, string(ct.Category), ct.RelatedID)
		if err != nil {
			return fmt.Errorf("failed to insert wheel trade %s: %w", ct.Trade.ID, err)
		}
	}
	return nil
}

// GetByOwner loads every wheel for an owner, rehydrating each trade from the
// execution history. tradesByID must cover the owner's full history (the
// sync pipeline has it loaded anyway); a wheel trade whose execution is
// missing is dropped with a warning rather than failing the load.
func (r *Repository) GetByOwner(owner string, tradesByID map[string]domain.Trade) ([]*Wheel, error) {
	rows, err := r.db.Query(`
		SELECT wheel_id, symbol, phase, active, strike, current_call_id, started_at, closed_at
		FROM wheels
		WHERE owner = ?
		ORDER BY started_at ASC, wheel_id ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query wheels: %w", err)
	}
	defer rows.Close()

	var wheels []*Wheel
	for rows.Next() {
		var (
			w             Wheel
			phase         string
			active        int
			currentCallID string
			startedAt     int64
			closedAt      sql.NullInt64
		)
		if err := rows.Scan(&w.ID, &w.Symbol, &phase, &active, &w.Strike,
			&currentCallID, &startedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wheel row: %w", err)
		}
		w.Owner = owner
		w.Phase = Phase(phase)
		w.IsOpen = active == 1
		w.StartDate = time.Unix(startedAt, 0).UTC()
		if closedAt.Valid {
			end := time.Unix(closedAt.Int64, 0).UTC()
			w.EndDate = &end
		}

		if err := r.loadTrades(&w, tradesByID, currentCallID); err != nil {
			return nil, err
		}
		Recalculate(&w)
		wheels = append(wheels, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wheel rows: %w", err)
	}
	return wheels, nil
}

// loadTrades restores the wheel's classified trade list in attachment order
// and re-links the outstanding sold call by id.
func (r *Repository) loadTrades(w *Wheel, tradesByID map[string]domain.Trade, currentCallID string) error {
	rows, err := r.db.Query(`
		SELECT trade_id, category, related_id
		FROM wheel_trades
		WHERE owner = ? AND wheel_id = ?
		ORDER BY seq ASC`, w.Owner, w.ID)
	if err != nil {
		return fmt.Errorf("failed to query wheel trades for %s: %w", w.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tradeID, category, relatedID string
		if err := rows.Scan(&tradeID, &category, &relatedID); err != nil {
			return fmt.Errorf("failed to scan wheel trade row: %w", err)
		}
		trade, ok := tradesByID[tradeID]
		if !ok {
			r.log.Warn().
				Str("wheel_id", w.ID).
				Str("trade_id", tradeID).
				Msg("Wheel references execution missing from history, dropping trade")
			continue
		}
		ct := ClassifiedTrade{Trade: trade, Category: Category(category), RelatedID: relatedID}
		w.Trades = append(w.Trades, ct)
		if currentCallID != "" && tradeID == currentCallID {
			call := trade
			w.CurrentSoldCall = &call
		}
	}
	return rows.Err()
}
