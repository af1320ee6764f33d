package wheels

// Recalculate recomputes a wheel's realized totals as a pure fold over its
// trade list. Cash flow per trade is -(quantity * price * multiplier) +
// commission: selling (negative quantity) yields positive premium, buying
// back costs it, and commissions are carried as signed costs. Always a full
// recomputation, never incremental, so the totals can never drift from the
// trade list.
func Recalculate(w *Wheel) {
	var pnl, commissions float64
	for _, ct := range w.Trades {
		t := ct.Trade
		pnl += -(t.Quantity * t.Price * t.Multiplier()) + t.Commission
		commissions += t.Commission
	}
	w.TotalPnL = pnl
	w.TotalCommissions = commissions
}
