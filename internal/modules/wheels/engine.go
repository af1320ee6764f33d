package wheels

import (
	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Classification is the diagnostic projection of one classifier output,
// keyed for UI/audit display.
type Classification struct {
	TradeID   string   `json:"trade_id"`
	Symbol    string   `json:"symbol"`
	Category  Category `json:"category"`
	RelatedID string   `json:"related_trade_id,omitempty"`
}

// Result is the full output of one engine run.
type Result struct {
	Wheels          []*Wheel         `json:"wheels"`
	Classifications []Classification `json:"classifications"`
	Unmatched       []UnmatchedTrade `json:"unmatched"`
	Invalid         []InvalidTrade   `json:"invalid"`
}

// Engine wires the classification and lifecycle passes into the single
// entry point the sync pipeline calls. It performs no I/O: executions come
// in, an updated wheel collection and diagnostics come out.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates the wheel engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "wheel_engine").Logger(),
	}
}

// Run executes one full pass over an owner's execution history against the
// previously persisted wheels. Safe to invoke repeatedly with overlapping
// histories: wheel ids are deterministic and already-attached trades are
// skipped. Not safe for concurrent calls over the same wheel collection;
// the sync pipeline serializes runs per owner.
func (e *Engine) Run(owner string, trades []domain.Trade, existing []*Wheel) *Result {
	valid := make([]domain.Trade, 0, len(trades))
	var invalid []InvalidTrade
	for _, t := range trades {
		if err := t.Validate(); err != nil {
			e.log.Warn().Str("trade_id", t.ID).Err(err).Msg("Excluding malformed trade record")
			invalid = append(invalid, InvalidTrade{TradeID: t.ID, Reason: err.Error()})
			continue
		}
		valid = append(valid, t)
	}

	classified := Classify(valid)
	newWheels := IdentifyNewWheels(classified, owner)
	wheels := Merge(newWheels, existing)
	unmatched := Process(wheels, classified)

	classifications := make([]Classification, 0, len(classified))
	for _, ct := range classified {
		classifications = append(classifications, Classification{
			TradeID:   ct.Trade.ID,
			Symbol:    ct.Trade.Symbol,
			Category:  ct.Category,
			RelatedID: ct.RelatedID,
		})
	}

	for _, u := range unmatched {
		e.log.Warn().
			Str("trade_id", u.TradeID).
			Str("symbol", u.Symbol).
			Str("category", string(u.Category)).
			Msg("Trade matched no open wheel")
	}

	e.log.Info().
		Str("owner", owner).
		Int("trades", len(trades)).
		Int("classified", len(classified)).
		Int("new_wheels", len(newWheels)).
		Int("wheels", len(wheels)).
		Int("unmatched", len(unmatched)).
		Msg("Wheel engine run complete")

	return &Result{
		Wheels:          wheels,
		Classifications: classifications,
		Unmatched:       unmatched,
		Invalid:         invalid,
	}
}
