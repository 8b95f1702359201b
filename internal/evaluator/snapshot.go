package evaluator

import (
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/shopspring/decimal"
)

// Snapshot summarizes the realized PnL as of the UTC day of at, for the
// pre-trade guard. Trades exiting after that day are left out.
func (e *Evaluator) Snapshot(at time.Time) types.LedgerSnapshot {
	day := dateOf(at)

	realized := decimal.Zero
	peak := decimal.Zero
	dayStart := decimal.Zero
	daily := decimal.Zero

	for _, t := range e.ledger().CompletedTrades {
		exitDay := dateOf(exitTime(t))
		if exitDay > day {
			break
		}

		pnl := decimal.NewFromFloat(t.PnL.TakeOr(0))
		if exitDay < day {
			dayStart = dayStart.Add(pnl)
		} else {
			daily = daily.Add(pnl)
		}

		realized = realized.Add(pnl)
		if realized.GreaterThan(peak) {
			peak = realized
		}
	}

	return types.LedgerSnapshot{
		RealizedPnL: realized.InexactFloat64(),
		PeakPnL:     peak.InexactFloat64(),
		DayStartPnL: dayStart.InexactFloat64(),
		DailyPnL:    daily.InexactFloat64(),
		Date:        day,
	}
}
