package analytics

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

func closedWheel(symbol string, pnl float64, start time.Time, days int) *wheels.Wheel {
	end := start.Add(time.Duration(days) * 24 * time.Hour)
	return &wheels.Wheel{
		Symbol:    symbol,
		Phase:     wheels.PhaseCSP,
		IsOpen:    false,
		StartDate: start,
		EndDate:   &end,
		TotalPnL:  pnl,
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ws := []*wheels.Wheel{
		closedWheel("AAPL", 199.35, start, 14),
		closedWheel("AAPL", -50.00, start, 7),
		closedWheel("MSFT", 120.00, start, 21),
		{Symbol: "MSFT", Phase: wheels.PhaseSharesHeld, IsOpen: true, StartDate: start, TotalPnL: 80.00},
	}

	summary := NewService(zerolog.Nop()).Summarize(ws)

	assert.Equal(t, 4, summary.TotalWheels)
	assert.Equal(t, 1, summary.OpenWheels)
	assert.Equal(t, 3, summary.ClosedWheels)
	assert.InDelta(t, 349.35, summary.TotalPnL, 1e-9)
	assert.InDelta(t, 2.0/3.0, summary.WinRate, 1e-9)
	assert.InDelta(t, (199.35-50.00+120.00)/3, summary.MeanPnL, 1e-9)
	assert.InDelta(t, 120.00, summary.MedianPnL, 1e-9)
	assert.InDelta(t, 14.0, summary.AvgCycleDays, 1e-9)

	aapl := summary.BySymbol["AAPL"]
	assert.Equal(t, 2, aapl.Wheels)
	assert.Equal(t, 0, aapl.Open)
	assert.InDelta(t, 149.35, aapl.TotalPnL, 1e-9)

	msft := summary.BySymbol["MSFT"]
	assert.Equal(t, 2, msft.Wheels)
	assert.Equal(t, 1, msft.Open)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := NewService(zerolog.Nop()).Summarize(nil)
	assert.Equal(t, 0, summary.TotalWheels)
	assert.Zero(t, summary.WinRate)
	assert.Zero(t, summary.MedianPnL)
}
