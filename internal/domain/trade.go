// Package domain holds the core value types shared between the broker client,
// the repositories and the wheel engine.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AssetClass identifies what kind of instrument an execution traded.
type AssetClass string

const (
	AssetOption AssetClass = "OPT"
	AssetStock  AssetClass = "STK"
)

// OptionRight is the right of an option contract. Empty for stock executions.
type OptionRight string

const (
	RightPut  OptionRight = "P"
	RightCall OptionRight = "C"
	RightNone OptionRight = ""
)

// ContractMultiplier is the standard equity-option contract size.
const ContractMultiplier = 100.0

// Trade is one normalized broker execution. It is immutable once constructed:
// the engine never mutates a Trade, only attaches it to wheels.
//
// Quantity is signed: negative means sold (opened short, or stock sold),
// positive means bought. Commission is conventionally <= 0 (a cost).
type Trade struct {
	ID          string      `json:"trade_id"`
	Symbol      string      `json:"symbol"`
	AssetClass  AssetClass  `json:"asset_class"`
	Right       OptionRight `json:"put_call,omitempty"`
	Strike      *float64    `json:"strike,omitempty"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price"`
	Commission  float64     `json:"commission"`
	ExecutedAt  time.Time   `json:"executed_at"`
	Description string      `json:"description,omitempty"`
}

// Multiplier returns the per-unit cash multiplier for this execution:
// 100 for option contracts, 1 for stock.
func (t Trade) Multiplier() float64 {
	if t.AssetClass == AssetOption {
		return ContractMultiplier
	}
	return 1.0
}

// IsOption reports whether the execution traded an option contract.
func (t Trade) IsOption() bool {
	return t.AssetClass == AssetOption
}

// Validate checks the Trade Record invariants. A violation is a precondition
// failure for this single record; callers exclude the record and continue
// with the rest of the batch.
func (t Trade) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("trade has empty id")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade %s has empty symbol", t.ID)
	}
	if t.AssetClass != AssetOption && t.AssetClass != AssetStock {
		return fmt.Errorf("trade %s has unknown asset class %q", t.ID, t.AssetClass)
	}
	if t.ExecutedAt.IsZero() {
		return fmt.Errorf("trade %s has zero timestamp", t.ID)
	}
	if t.Quantity == 0 {
		return fmt.Errorf("trade %s has zero quantity", t.ID)
	}
	if t.AssetClass == AssetOption {
		if t.Right != RightPut && t.Right != RightCall {
			return fmt.Errorf("option trade %s has unknown right %q", t.ID, t.Right)
		}
		if t.Strike == nil {
			return fmt.Errorf("option trade %s has no strike", t.ID)
		}
	}
	return nil
}

// priceEpsilon bounds strike/price equality checks. Broker strikes and fill
// prices arrive as binary floats; exact == is fragile, so every monetary
// comparison in the engine goes through PriceEqual.
const priceEpsilon = 1e-6

// PriceEqual reports whether two monetary values are equal within tolerance.
func PriceEqual(a, b float64) bool {
	return math.Abs(a-b) <= priceEpsilon
}

// Position is one row of the broker's open-position snapshot. The snapshot is
// ephemeral: it is wiped and rewritten on every sync.
type Position struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"position"`
	MarkPrice  float64 `json:"mark_price"`
	Multiplier float64 `json:"multiplier"`
}
