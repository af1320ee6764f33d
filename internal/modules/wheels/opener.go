package wheels

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// IdentifyNewWheels creates a wheel instance for every opening put sale in
// the classified batch. Wheel ids are deterministic functions of the opening
// trade, so re-running over the same history reproduces identical ids.
func IdentifyNewWheels(classified []ClassifiedTrade, owner string) []*Wheel {
	var out []*Wheel
	for _, ct := range classified {
		if ct.Category != CategoryOpen {
			continue
		}
		w := &Wheel{
			Owner:     owner,
			ID:        NewWheelID(owner, ct.Trade),
			Symbol:    ct.Trade.Symbol,
			Strike:    *ct.Trade.Strike,
			StartDate: ct.Trade.ExecutedAt,
			IsOpen:    true,
			Phase:     PhaseCSP,
			Trades:    []ClassifiedTrade{ct},
		}
		Recalculate(w)
		out = append(out, w)
	}
	return out
}

// NewWheelID derives the stable wheel key for an opening trade. The suffix
// is a namespaced SHA-1 UUID over (owner, trade id), so two puts sold on the
// same symbol and day still produce distinct ids, while repeated syncs of
// the same execution reproduce the same one.
func NewWheelID(owner string, opening domain.Trade) string {
	suffix := uuid.NewSHA1(uuid.NameSpaceOID, []byte(owner+"|"+opening.ID)).String()[:8]
	return fmt.Sprintf("WHEEL-%s-%s-%s",
		strings.ToUpper(opening.Symbol),
		opening.ExecutedAt.UTC().Format("20060102"),
		suffix)
}

// Merge unions newly-opened wheels into the existing collection by wheel id.
// Existing wheels pass through unchanged; a new wheel is appended only when
// its id is not already present. Repeated full-history syncs are idempotent
// at this layer.
func Merge(newWheels, existing []*Wheel) []*Wheel {
	out := make([]*Wheel, 0, len(existing)+len(newWheels))
	present := make(map[string]bool, len(existing))
	for _, w := range existing {
		out = append(out, w)
		present[w.ID] = true
	}
	for _, w := range newWheels {
		if present[w.ID] {
			continue
		}
		present[w.ID] = true
		out = append(out, w)
	}
	return out
}
