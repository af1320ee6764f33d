// Package analytics aggregates finished and running wheels into summary
// statistics. Purely additive: it reads wheel aggregates and computes, it
// never mutates them.
package analytics

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

// Summary is the aggregate view over one owner's wheels.
type Summary struct {
	TotalWheels      int                        `json:"total_wheels"`
	OpenWheels       int                        `json:"open_wheels"`
	ClosedWheels     int                        `json:"closed_wheels"`
	TotalPnL         float64                    `json:"total_pnl"`
	TotalCommissions float64                    `json:"total_commissions"`
	WinRate          float64                    `json:"win_rate"`
	MeanPnL          float64                    `json:"mean_pnl"`
	MedianPnL        float64                    `json:"median_pnl"`
	AvgCycleDays     float64                    `json:"avg_cycle_days"`
	BySymbol         map[string]SymbolBreakdown `json:"by_symbol"`
}

// SymbolBreakdown aggregates one symbol's wheels.
type SymbolBreakdown struct {
	Wheels   int     `json:"wheels"`
	Open     int     `json:"open"`
	TotalPnL float64 `json:"total_pnl"`
}

// Service computes wheel analytics.
type Service struct {
	log zerolog.Logger
}

// NewService creates the analytics service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "analytics").Logger(),
	}
}

// Summarize reduces a wheel collection to its summary statistics. Win rate,
// mean/median PnL and cycle duration are computed over closed wheels only;
// totals cover everything.
func (s *Service) Summarize(ws []*wheels.Wheel) *Summary {
	summary := &Summary{
		BySymbol: make(map[string]SymbolBreakdown),
	}

	var (
		closedPnLs []float64
		cycleDays  []float64
		wins       int
	)

	for _, w := range ws {
		summary.TotalWheels++
		summary.TotalPnL += w.TotalPnL
		summary.TotalCommissions += w.TotalCommissions

		breakdown := summary.BySymbol[w.Symbol]
		breakdown.Wheels++
		breakdown.TotalPnL += w.TotalPnL

		if w.IsOpen {
			summary.OpenWheels++
			breakdown.Open++
		} else {
			summary.ClosedWheels++
			closedPnLs = append(closedPnLs, w.TotalPnL)
			if w.TotalPnL > 0 {
				wins++
			}
			if w.EndDate != nil {
				cycleDays = append(cycleDays, w.EndDate.Sub(w.StartDate).Hours()/24)
			}
		}
		summary.BySymbol[w.Symbol] = breakdown
	}

	if len(closedPnLs) > 0 {
		summary.WinRate = float64(wins) / float64(len(closedPnLs))
		summary.MeanPnL = stat.Mean(closedPnLs, nil)

		sort.Float64s(closedPnLs)
		summary.MedianPnL = stat.Quantile(0.5, stat.Empirical, closedPnLs, nil)
	}
	if len(cycleDays) > 0 {
		summary.AvgCycleDays = stat.Mean(cycleDays, nil)
	}

	return summary
}
