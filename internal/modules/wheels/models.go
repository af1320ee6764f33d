// Package wheels implements the trade classification and wheel-lifecycle
// engine: it maps raw broker executions to semantic actions, detects
// option assignments by pairing option and stock legs, and maintains the
// per-symbol state machine that opens, advances and closes wheel instances.
package wheels

import (
	"time"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Category is the semantic action assigned to one execution. The set is
// closed: every switch over Category in this package handles all values.
type Category string

const (
	// CategoryOpen - put sold, opens a new wheel
	CategoryOpen Category = "OPEN"
	// CategoryClosePut - put bought back without assignment
	CategoryClosePut Category = "CLOSE_PUT"
	// CategoryPutAssigned - put exercised against us, shares delivered
	CategoryPutAssigned Category = "PUT_ASSIGNED"
	// CategorySellCall - covered call sold against held shares
	CategorySellCall Category = "SELL_CALL"
	// CategoryCloseCall - covered call bought back
	CategoryCloseCall Category = "CLOSE_CALL"
	// CategoryCallAssigned - call exercised, shares called away
	CategoryCallAssigned Category = "CALL_ASSIGNED"
	// CategoryStockBuy / CategoryStockSell - assignment-eligible stock lots.
	// They only survive classification as the consumed leg of an assignment;
	// standalone lots are filtered from final output.
	CategoryStockBuy  Category = "STOCK_BUY"
	CategoryStockSell Category = "STOCK_SELL"
	// CategoryUncategorized - internal bucket for trades with no
	// wheel-actionable meaning; never emitted.
	CategoryUncategorized Category = "UNCATEGORIZED"
)

// Phase is the lifecycle state of a wheel. Closed set, exhaustively matched.
type Phase string

const (
	// PhaseCSP - cash-secured put sold, waiting for expiry or assignment
	PhaseCSP Phase = "CSP"
	// PhaseSharesHeld - put was assigned, holding shares
	PhaseSharesHeld Phase = "SHARES_HELD"
	// PhaseCoveredCall - call sold against held shares
	PhaseCoveredCall Phase = "COVERED_CALL"
)

// ClassifiedTrade pairs an execution with its semantic category.
// RelatedID, when set, names the stock execution consumed to produce an
// assignment classification; that stock execution never appears as a
// top-level classified output of its own.
type ClassifiedTrade struct {
	Trade     domain.Trade `json:"trade"`
	Category  Category     `json:"category"`
	RelatedID string       `json:"related_trade_id,omitempty"`
}

// Wheel is one strategy instance on one symbol. Created by the opener from
// exactly one put sale, mutated by the lifecycle processor while open,
// immutable once closed.
type Wheel struct {
	Owner            string            `json:"owner"`
	ID               string            `json:"wheel_id"`
	Symbol           string            `json:"symbol"`
	Strike           float64           `json:"strike"`
	StartDate        time.Time         `json:"start_date"`
	EndDate          *time.Time        `json:"end_date,omitempty"`
	IsOpen           bool              `json:"is_open"`
	Phase            Phase             `json:"phase"`
	Trades           []ClassifiedTrade `json:"trades"`
	TotalPnL         float64           `json:"total_pnl"`
	TotalCommissions float64           `json:"total_commissions"`
	CurrentSoldCall  *domain.Trade     `json:"current_sold_call,omitempty"`
}

// close marks the wheel finished. No further trades may attach.
func (w *Wheel) close(at time.Time) {
	w.IsOpen = false
	end := at
	w.EndDate = &end
}

// UnmatchedTrade is the diagnostic record for a classified trade whose
// phase/strike guard matched no open wheel. The trade is skipped, never
// guess-attached.
type UnmatchedTrade struct {
	TradeID  string   `json:"trade_id"`
	Symbol   string   `json:"symbol"`
	Category Category `json:"category"`
	Reason   string   `json:"reason"`
}

// InvalidTrade records a trade record that violated its invariants and was
// excluded from the batch.
type InvalidTrade struct {
	TradeID string `json:"trade_id"`
	Reason  string `json:"reason"`
}
