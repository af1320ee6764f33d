package wheels

import (
	"math"
	"sort"
	"time"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// assignmentWindow bounds how far apart an option trade and its stock leg
// may execute and still be merged into a single assignment event.
const assignmentWindow = 30 * time.Minute

// Classify maps an unordered collection of executions to their semantic
// categories. Pure and deterministic: output is chronological, duplicate
// trade ids within the batch are no-ops, and stock legs consumed by an
// assignment never appear as standalone output.
func Classify(trades []domain.Trade) []ClassifiedTrade {
	sorted := dedupeChronological(trades)

	classified := make([]ClassifiedTrade, len(sorted))
	for i, t := range sorted {
		classified[i] = ClassifiedTrade{Trade: t, Category: provisionalCategory(t)}
	}

	// Assignment-matching pass, in chronological order of the option trade.
	// A matched stock leg is consumed and merged into its option counterpart.
	consumed := make(map[string]bool)
	for i := range classified {
		ct := &classified[i]
		switch ct.Category {
		case CategoryClosePut:
			if legID, ok := findAssignmentLeg(classified, consumed, ct.Trade, 1); ok {
				ct.Category = CategoryPutAssigned
				ct.RelatedID = legID
				consumed[legID] = true
			}
		case CategoryCloseCall:
			if legID, ok := findAssignmentLeg(classified, consumed, ct.Trade, -1); ok {
				ct.Category = CategoryCallAssigned
				ct.RelatedID = legID
				consumed[legID] = true
			}
		case CategoryOpen, CategoryPutAssigned, CategorySellCall, CategoryCallAssigned,
			CategoryStockBuy, CategoryStockSell, CategoryUncategorized:
			// Not assignment candidates.
		}
	}

	// Final filter: drop uncategorized trades, consumed stock legs, and
	// standalone stock lots that were never part of an assignment.
	out := make([]ClassifiedTrade, 0, len(classified))
	for _, ct := range classified {
		if consumed[ct.Trade.ID] {
			continue
		}
		switch ct.Category {
		case CategoryUncategorized, CategoryStockBuy, CategoryStockSell:
			continue
		case CategoryOpen, CategoryClosePut, CategoryPutAssigned,
			CategorySellCall, CategoryCloseCall, CategoryCallAssigned:
			out = append(out, ct)
		}
	}
	return out
}

// dedupeChronological drops repeated trade ids (first occurrence wins) and
// returns the batch sorted by timestamp, ties broken by id for stability.
func dedupeChronological(trades []domain.Trade) []domain.Trade {
	seen := make(map[string]bool, len(trades))
	sorted := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		sorted = append(sorted, t)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExecutedAt.Equal(sorted[j].ExecutedAt) {
			return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// provisionalCategory buckets one execution by (asset class, right, sign).
func provisionalCategory(t domain.Trade) Category {
	if t.IsOption() {
		switch t.Right {
		case domain.RightPut:
			if t.Quantity < 0 {
				return CategoryOpen
			}
			return CategoryClosePut
		case domain.RightCall:
			if t.Quantity < 0 {
				return CategorySellCall
			}
			return CategoryCloseCall
		case domain.RightNone:
			return CategoryUncategorized
		}
		return CategoryUncategorized
	}

	if isAssignmentLot(t) {
		if t.Quantity > 0 {
			return CategoryStockBuy
		}
		return CategoryStockSell
	}
	return CategoryUncategorized
}

// isAssignmentLot reports whether a stock execution's size could be the
// delivery leg of an option assignment: a non-zero multiple of the contract
// multiplier.
func isAssignmentLot(t domain.Trade) bool {
	qty := math.Abs(t.Quantity)
	if qty == 0 {
		return false
	}
	return domain.PriceEqual(math.Mod(qty, domain.ContractMultiplier), 0)
}

// findAssignmentLeg scans the batch chronologically for an unconsumed stock
// lot of the given sign with the option's symbol, execution price equal to
// the option's strike, and a timestamp within the assignment window.
// The earliest candidate in scan order wins.
func findAssignmentLeg(classified []ClassifiedTrade, consumed map[string]bool, opt domain.Trade, sign int) (string, bool) {
	if opt.Strike == nil {
		return "", false
	}
	want := CategoryStockBuy
	if sign < 0 {
		want = CategoryStockSell
	}
	for _, cand := range classified {
		if cand.Category != want || consumed[cand.Trade.ID] {
			continue
		}
		if cand.Trade.Symbol != opt.Symbol {
			continue
		}
		if !domain.PriceEqual(cand.Trade.Price, *opt.Strike) {
			continue
		}
		gap := cand.Trade.ExecutedAt.Sub(opt.ExecutedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap > assignmentWindow {
			continue
		}
		return cand.Trade.ID, true
	}
	return "", false
}
