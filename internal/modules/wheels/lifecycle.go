package wheels

import (
	"sort"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Process attaches classified trades to open wheels, advancing or closing
// their phase. Wheels are mutated in place; the returned slice holds the
// diagnostics for trades that matched no open wheel.
//
// The open-wheel index is built fresh per call and never outlives it.
// Trades are consumed in chronological order so phase preconditions hold by
// the time a later trade is evaluated; each trade attaches to at most one
// wheel. Trades already present in a wheel (from an earlier sync) are
// skipped, which makes repeated overlapping syncs no-ops.
func Process(wheels []*Wheel, classified []ClassifiedTrade) []UnmatchedTrade {
	index := buildOpenIndex(wheels)
	attached := attachedTradeIDs(wheels)

	ordered := append([]ClassifiedTrade(nil), classified...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Trade.ExecutedAt.Equal(ordered[j].Trade.ExecutedAt) {
			return ordered[i].Trade.ExecutedAt.Before(ordered[j].Trade.ExecutedAt)
		}
		return ordered[i].Trade.ID < ordered[j].Trade.ID
	})

	var unmatched []UnmatchedTrade
	for _, ct := range ordered {
		switch ct.Category {
		case CategoryOpen:
			// Opening trades belong to the wheel opener, not this pass.
			continue
		case CategoryStockBuy, CategoryStockSell, CategoryUncategorized:
			// Never emitted by the classifier; nothing to attach.
			continue
		case CategoryClosePut, CategoryPutAssigned, CategorySellCall,
			CategoryCloseCall, CategoryCallAssigned:
		}

		if attached[ct.Trade.ID] {
			continue
		}

		w := firstEligible(index[ct.Trade.Symbol], ct)
		if w == nil {
			unmatched = append(unmatched, UnmatchedTrade{
				TradeID:  ct.Trade.ID,
				Symbol:   ct.Trade.Symbol,
				Category: ct.Category,
				Reason:   "no open wheel in required phase with matching strike",
			})
			continue
		}

		w.apply(ct)
		attached[ct.Trade.ID] = true
		if ct.RelatedID != "" {
			attached[ct.RelatedID] = true
		}
		if !w.IsOpen {
			index[ct.Trade.Symbol] = dropWheel(index[ct.Trade.Symbol], w)
		}
	}
	return unmatched
}

// buildOpenIndex groups open wheels by symbol, each group ordered by start
// date ascending so the earliest wheel wins when several are eligible.
func buildOpenIndex(wheels []*Wheel) map[string][]*Wheel {
	index := make(map[string][]*Wheel)
	for _, w := range wheels {
		if w.IsOpen {
			index[w.Symbol] = append(index[w.Symbol], w)
		}
	}
	for _, group := range index {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].StartDate.Equal(group[j].StartDate) {
				return group[i].StartDate.Before(group[j].StartDate)
			}
			return group[i].ID < group[j].ID
		})
	}
	return index
}

// attachedTradeIDs collects every trade id already held by any wheel,
// including the merged stock legs of assignments.
func attachedTradeIDs(wheels []*Wheel) map[string]bool {
	attached := make(map[string]bool)
	for _, w := range wheels {
		for _, ct := range w.Trades {
			attached[ct.Trade.ID] = true
			if ct.RelatedID != "" {
				attached[ct.RelatedID] = true
			}
		}
	}
	return attached
}

// firstEligible returns the first wheel in the (start-date ordered) group
// that passes the phase/strike guard for this trade, or nil.
func firstEligible(group []*Wheel, ct ClassifiedTrade) *Wheel {
	for _, w := range group {
		if w.eligible(ct) {
			return w
		}
	}
	return nil
}

// eligible is the transition guard: the trade must not predate the wheel's
// opening trade, its category must be legal for the wheel's current phase,
// and the strike must match the phase-appropriate reference (the wheel's
// opening strike for puts, the outstanding sold call's strike for calls).
func (w *Wheel) eligible(ct ClassifiedTrade) bool {
	// An orphan closer from before the opening trade (history cut-off)
	// cannot belong to this wheel; attaching it would end the wheel before
	// it starts and corrupt its totals.
	if ct.Trade.ExecutedAt.Before(w.StartDate) {
		return false
	}

	switch ct.Category {
	case CategoryClosePut, CategoryPutAssigned:
		return w.Phase == PhaseCSP &&
			ct.Trade.Strike != nil &&
			domain.PriceEqual(*ct.Trade.Strike, w.Strike)
	case CategorySellCall:
		return w.Phase == PhaseSharesHeld
	case CategoryCloseCall, CategoryCallAssigned:
		return w.Phase == PhaseCoveredCall &&
			w.CurrentSoldCall != nil &&
			w.CurrentSoldCall.Strike != nil &&
			ct.Trade.Strike != nil &&
			domain.PriceEqual(*ct.Trade.Strike, *w.CurrentSoldCall.Strike)
	case CategoryOpen, CategoryStockBuy, CategoryStockSell, CategoryUncategorized:
		return false
	}
	return false
}

// apply attaches the trade and performs the state transition, then recomputes
// totals from the full trade list.
func (w *Wheel) apply(ct ClassifiedTrade) {
	w.Trades = append(w.Trades, ct)

	switch ct.Category {
	case CategoryClosePut:
		// Put bought back: the cycle ends without shares changing hands.
		w.close(ct.Trade.ExecutedAt)
	case CategoryPutAssigned:
		w.Phase = PhaseSharesHeld
	case CategorySellCall:
		call := ct.Trade
		w.Phase = PhaseCoveredCall
		w.CurrentSoldCall = &call
	case CategoryCloseCall:
		w.Phase = PhaseSharesHeld
		w.CurrentSoldCall = nil
	case CategoryCallAssigned:
		w.CurrentSoldCall = nil
		w.close(ct.Trade.ExecutedAt)
	case CategoryOpen, CategoryStockBuy, CategoryStockSell, CategoryUncategorized:
		// Guarded out by eligible().
	}

	Recalculate(w)
}

// dropWheel removes a closed wheel from its symbol group.
func dropWheel(group []*Wheel, w *Wheel) []*Wheel {
	out := group[:0]
	for _, cand := range group {
		if cand != w {
			out = append(out, cand)
		}
	}
	return out
}
