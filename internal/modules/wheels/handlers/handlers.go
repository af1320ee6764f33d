// Package handlers provides HTTP handlers for the wheel summary API.
package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

// WheelLoader rehydrates an owner's wheel collection.
type WheelLoader interface {
	Load(owner string) ([]*wheels.Wheel, error)
}

// MarkPriceSource provides current mark prices from the position snapshot.
type MarkPriceSource interface {
	MarkPriceBySymbol(owner string) (map[string]float64, error)
}

// WheelHandlers contains HTTP handlers for the wheels API
type WheelHandlers struct {
	loader WheelLoader
	marks  MarkPriceSource
	log    zerolog.Logger
}

// NewWheelHandlers creates a new wheel handlers instance
func NewWheelHandlers(loader WheelLoader, marks MarkPriceSource, log zerolog.Logger) *WheelHandlers {
	return &WheelHandlers{
		loader: loader,
		marks:  marks,
		log:    log.With().Str("handler", "wheels").Logger(),
	}
}

// CurrencyCell is a display-ready money value.
type CurrencyCell struct {
	Value string  `json:"value"`
	Class string  `json:"class"`
	Raw   float64 `json:"raw"`
}

// WheelView is one wheel in the summary response. Market-value fields are
// present only for open wheels holding shares with a known mark price.
type WheelView struct {
	WheelID          string        `json:"wheel_id"`
	Symbol           string        `json:"symbol"`
	Phase            string        `json:"phase"`
	IsOpen           bool          `json:"is_open"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          *time.Time    `json:"end_date,omitempty"`
	Strike           float64       `json:"strike"`
	TradeCount       int           `json:"trade_count"`
	TotalPnL         CurrencyCell  `json:"total_pnl"`
	TotalCommissions CurrencyCell  `json:"total_commissions"`
	SoldCallStrike   *float64      `json:"sold_call_strike,omitempty"`
	MarketPrice      *float64      `json:"market_price,omitempty"`
	CostBasis        *CurrencyCell `json:"cost_basis,omitempty"`
	CurrentValue     *CurrencyCell `json:"current_value,omitempty"`
	UnrealizedPnL    *CurrencyCell `json:"unrealized_pnl,omitempty"`
}

// SummaryResponse is the full /api/wheels payload.
type SummaryResponse struct {
	Wheels []WheelView  `json:"wheels"`
	Totals SummaryTotal `json:"totals"`
}

// SummaryTotal aggregates the collection.
type SummaryTotal struct {
	TotalPnL     CurrencyCell `json:"total_pnl"`
	OpenWheels   int          `json:"open_wheels"`
	ClosedWheels int          `json:"closed_wheels"`
}

// HandleGetWheels returns the wheel summary
// GET /api/wheels
func (h *WheelHandlers) HandleGetWheels(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	ws, err := h.loader.Load(owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to load wheels")
		http.Error(w, "Failed to load wheels", http.StatusInternalServerError)
		return
	}

	marks, err := h.marks.MarkPriceBySymbol(owner)
	if err != nil {
		h.log.Warn().Err(err).Str("owner", owner).Msg("Failed to load mark prices, omitting market fields")
		marks = nil
	}

	resp := SummaryResponse{Wheels: make([]WheelView, 0, len(ws))}
	var totalPnL float64
	for _, wheel := range ws {
		resp.Wheels = append(resp.Wheels, buildView(wheel, marks))
		totalPnL += wheel.TotalPnL
		if wheel.IsOpen {
			resp.Totals.OpenWheels++
		} else {
			resp.Totals.ClosedWheels++
		}
	}
	resp.Totals.TotalPnL = formatCurrency(totalPnL)

	respondJSON(w, http.StatusOK, resp)
}

func buildView(wheel *wheels.Wheel, marks map[string]float64) WheelView {
	view := WheelView{
		WheelID:          wheel.ID,
		Symbol:           wheel.Symbol,
		Phase:            string(wheel.Phase),
		IsOpen:           wheel.IsOpen,
		StartDate:        wheel.StartDate,
		EndDate:          wheel.EndDate,
		Strike:           wheel.Strike,
		TradeCount:       len(wheel.Trades),
		TotalPnL:         formatCurrency(wheel.TotalPnL),
		TotalCommissions: formatCurrency(wheel.TotalCommissions),
	}
	if wheel.CurrentSoldCall != nil && wheel.CurrentSoldCall.Strike != nil {
		strike := *wheel.CurrentSoldCall.Strike
		view.SoldCallStrike = &strike
	}

	holdingShares := wheel.IsOpen &&
		(wheel.Phase == wheels.PhaseSharesHeld || wheel.Phase == wheels.PhaseCoveredCall)
	if !holdingShares {
		return view
	}
	mark, ok := marks[wheel.Symbol]
	if !ok {
		return view
	}

	// One wheel cycle carries one contract's worth of shares.
	shares := 100.0
	view.MarketPrice = &mark
	costBasis := formatCurrency(wheel.Strike * shares)
	currentValue := formatCurrency(mark * shares)
	unrealized := formatCurrency((mark - wheel.Strike) * shares)
	view.CostBasis = &costBasis
	view.CurrentValue = &currentValue
	view.UnrealizedPnL = &unrealized
	return view
}

// formatCurrency renders a value as a display cell with a sign class, e.g.
// -1234.5 -> {"-$1,234.50", "negative", -1234.5}.
func formatCurrency(v float64) CurrencyCell {
	class := "positive"
	if v < 0 {
		class = "negative"
	}

	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	parts := strings.SplitN(s, ".", 2)
	formatted := "$" + groupThousands(parts[0]) + "." + parts[1]
	if v < 0 {
		formatted = "-" + formatted
	}
	return CurrencyCell{Value: formatted, Class: class, Raw: v}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
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
