package wheels

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func TestEngineOpensWheelFromPutSale(t *testing.T) {
	// Sell 1 AAPL 150-strike put @ $2.00, commission -$0.65:
	// premium 200.00 less 0.65 commission.
	trades := []domain.Trade{
		optionTrade("t1", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.Equal(t, "AAPL", w.Symbol)
	assert.Equal(t, PhaseCSP, w.Phase)
	assert.True(t, w.IsOpen)
	assert.Equal(t, 150.0, w.Strike)
	assert.InDelta(t, 199.35, w.TotalPnL, 1e-9)
	assert.InDelta(t, -0.65, w.TotalCommissions, 1e-9)

	require.Len(t, result.Classifications, 1)
	assert.Equal(t, CategoryOpen, result.Classifications[0].Category)
}

func TestEngineClosesWheelOnPutBuyback(t *testing.T) {
	// Stock buy 40 minutes before the put buy-back: outside the window,
	// so no assignment; the wheel closes in the CSP phase.
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		stockTrade("stk", "AAPL", 100, 150.00, testBase.Add(24*time.Hour)),
		optionTrade("buy", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(24*time.Hour+40*time.Minute)),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.False(t, w.IsOpen)
	assert.Equal(t, PhaseCSP, w.Phase)
	require.NotNil(t, w.EndDate)
	assert.Len(t, w.Trades, 2)
	// 200.00 - 0.65 - 10.00 - 0.65
	assert.InDelta(t, 188.70, w.TotalPnL, 1e-9)
}

func TestEngineAssignmentTransitionsToSharesHeld(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.True(t, w.IsOpen)
	assert.Equal(t, PhaseSharesHeld, w.Phase)

	// The stock leg is merged into the assignment, never standalone.
	for _, c := range result.Classifications {
		assert.NotEqual(t, "shares", c.TradeID)
		if c.TradeID == "assigned" {
			assert.Equal(t, CategoryPutAssigned, c.Category)
			assert.Equal(t, "shares", c.RelatedID)
		}
	}
}

func TestEngineCoveredCallRoundTrip(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
		optionTrade("call_sell", "AAPL", domain.RightCall, 160, -1, 1.50, -0.65, testBase.Add(48*time.Hour)),
	}

	result := testEngine().Run("alice", trades, nil)
	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.Equal(t, PhaseCoveredCall, w.Phase)
	require.NotNil(t, w.CurrentSoldCall)
	assert.Equal(t, 160.0, *w.CurrentSoldCall.Strike)

	// Buying the call back drops the wheel to SHARES_HELD.
	trades = append(trades,
		optionTrade("call_buy", "AAPL", domain.RightCall, 160, 1, 0.50, -0.65, testBase.Add(72*time.Hour)))

	result = testEngine().Run("alice", trades, nil)
	require.Len(t, result.Wheels, 1)
	w = result.Wheels[0]
	assert.Equal(t, PhaseSharesHeld, w.Phase)
	assert.Nil(t, w.CurrentSoldCall)
	assert.True(t, w.IsOpen)
}

func TestEngineCallAssignmentClosesWheel(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares_in", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
		optionTrade("call_sell", "AAPL", domain.RightCall, 160, -1, 1.50, -0.65, testBase.Add(48*time.Hour)),
		optionTrade("call_assigned", "AAPL", domain.RightCall, 160, 1, 0.00, 0, testBase.Add(96*time.Hour)),
		stockTrade("shares_out", "AAPL", -100, 160.00, testBase.Add(96*time.Hour+5*time.Minute)),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.False(t, w.IsOpen)
	require.NotNil(t, w.EndDate)
	assert.Nil(t, w.CurrentSoldCall)
	assert.Empty(t, result.Unmatched)
}

func TestEngineIdempotentAcrossRepeatedSyncs(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
		optionTrade("call_sell", "AAPL", domain.RightCall, 160, -1, 1.50, -0.65, testBase.Add(48*time.Hour)),
	}

	engine := testEngine()
	first := engine.Run("alice", trades, nil)
	second := engine.Run("alice", trades, first.Wheels)

	require.Len(t, second.Wheels, 1)
	assert.Equal(t, first.Wheels[0].ID, second.Wheels[0].ID)
	assert.Len(t, second.Wheels[0].Trades, 3)
	assert.InDelta(t, first.Wheels[0].TotalPnL, second.Wheels[0].TotalPnL, 1e-9)
	assert.Equal(t, PhaseCoveredCall, second.Wheels[0].Phase)
}

func TestEngineNoDoubleAttachment(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell1", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("sell2", "AAPL", domain.RightPut, 150, -1, 2.10, -0.65, testBase.Add(time.Hour)),
		optionTrade("buy", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(48*time.Hour)),
	}

	result := testEngine().Run("alice", trades, nil)
	require.Len(t, result.Wheels, 2)

	seen := make(map[string]string)
	for _, w := range result.Wheels {
		for _, ct := range w.Trades {
			prev, dup := seen[ct.Trade.ID]
			assert.False(t, dup, "trade %s in both %s and %s", ct.Trade.ID, prev, w.ID)
			seen[ct.Trade.ID] = w.ID
		}
	}
}

func TestEngineEarliestWheelWinsOnAmbiguousMatch(t *testing.T) {
	// Two open CSP wheels at the same strike: the buy-back attaches to
	// the one opened first.
	trades := []domain.Trade{
		optionTrade("sell_old", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("sell_new", "AAPL", domain.RightPut, 150, -1, 2.10, -0.65, testBase.Add(time.Hour)),
		optionTrade("buy", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(48*time.Hour)),
	}

	result := testEngine().Run("alice", trades, nil)
	require.Len(t, result.Wheels, 2)

	var closed, open int
	for _, w := range result.Wheels {
		if w.IsOpen {
			open++
			continue
		}
		closed++
		assert.True(t, w.StartDate.Equal(testBase), "the earliest wheel should have closed")
	}
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, open)
}

func TestEngineOrphanBuybackBeforeOpenIsUnmatched(t *testing.T) {
	// A buy-back left over from a history cut-off executes an hour before
	// the put sale that opens the wheel, same symbol and strike. It must
	// not close the wheel it predates.
	trades := []domain.Trade{
		optionTrade("orphan_buy", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(-time.Hour)),
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	w := result.Wheels[0]
	assert.True(t, w.IsOpen)
	assert.Equal(t, PhaseCSP, w.Phase)
	assert.Nil(t, w.EndDate)
	assert.Len(t, w.Trades, 1)
	assert.InDelta(t, 199.35, w.TotalPnL, 1e-9)

	require.Len(t, result.Unmatched, 1)
	assert.Equal(t, "orphan_buy", result.Unmatched[0].TradeID)
	assert.Equal(t, CategoryClosePut, result.Unmatched[0].Category)
}

func TestEngineUnmatchedTradeIsReportedNotAttached(t *testing.T) {
	// Buy-back at a strike no open wheel carries: skipped and surfaced.
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("buy_wrong", "AAPL", domain.RightPut, 155, 1, 0.10, -0.65, testBase.Add(48*time.Hour)),
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Wheels, 1)
	assert.True(t, result.Wheels[0].IsOpen)
	assert.Len(t, result.Wheels[0].Trades, 1)

	require.Len(t, result.Unmatched, 1)
	assert.Equal(t, "buy_wrong", result.Unmatched[0].TradeID)
	assert.Equal(t, CategoryClosePut, result.Unmatched[0].Category)
}

func TestEngineExcludesMalformedRecords(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("good", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		{ID: "bad", Symbol: "AAPL", AssetClass: domain.AssetOption, Right: domain.RightPut, Quantity: 1, ExecutedAt: testBase},
	}

	result := testEngine().Run("alice", trades, nil)

	require.Len(t, result.Invalid, 1)
	assert.Equal(t, "bad", result.Invalid[0].TradeID)
	require.Len(t, result.Wheels, 1)
	assert.Len(t, result.Wheels[0].Trades, 1)
}

func TestNewWheelIDIsDeterministic(t *testing.T) {
	opening := optionTrade("t1", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase)

	a := NewWheelID("alice", opening)
	b := NewWheelID("alice", opening)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "WHEEL-AAPL-20240301-")

	// Different owners or trades yield different ids.
	assert.NotEqual(t, a, NewWheelID("bob", opening))
	other := optionTrade("t2", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase)
	assert.NotEqual(t, a, NewWheelID("alice", other))
}

func TestMergeIsIdempotent(t *testing.T) {
	classified := Classify([]domain.Trade{
		optionTrade("t1", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
	})

	first := Merge(IdentifyNewWheels(classified, "alice"), nil)
	second := Merge(IdentifyNewWheels(classified, "alice"), first)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Len(t, second[0].Trades, 1)
}

func TestRecalculateIsDeterministic(t *testing.T) {
	w := &Wheel{Trades: []ClassifiedTrade{
		{Trade: optionTrade("t1", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase), Category: CategoryOpen},
		{Trade: optionTrade("t2", "AAPL", domain.RightPut, 150, 1, 0.10, -0.65, testBase.Add(time.Hour)), Category: CategoryClosePut},
	}}

	Recalculate(w)
	firstPnL, firstComm := w.TotalPnL, w.TotalCommissions
	Recalculate(w)

	assert.Equal(t, firstPnL, w.TotalPnL)
	assert.Equal(t, firstComm, w.TotalCommissions)
	assert.InDelta(t, 188.70, w.TotalPnL, 1e-9)
	assert.InDelta(t, -1.30, w.TotalCommissions, 1e-9)
}

func TestPhaseLegality(t *testing.T) {
	trades := []domain.Trade{
		optionTrade("sell", "AAPL", domain.RightPut, 150, -1, 2.00, -0.65, testBase),
		optionTrade("assigned", "AAPL", domain.RightPut, 150, 1, 0.00, 0, testBase.Add(24*time.Hour)),
		stockTrade("shares", "AAPL", 100, 150.00, testBase.Add(24*time.Hour+5*time.Minute)),
		optionTrade("msft_sell", "MSFT", domain.RightPut, 400, -1, 3.00, -0.65, testBase),
	}

	result := testEngine().Run("alice", trades, nil)
	for _, w := range result.Wheels {
		if w.Phase == PhaseCoveredCall {
			assert.NotNil(t, w.CurrentSoldCall, "wheel %s", w.ID)
		} else {
			assert.Nil(t, w.CurrentSoldCall, "wheel %s", w.ID)
		}
		if !w.IsOpen {
			assert.NotNil(t, w.EndDate, "wheel %s", w.ID)
		}
	}
}
