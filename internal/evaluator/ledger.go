package evaluator

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// AccountState is the ledger rebuilt from the trades added so far.
// Balances come from a chronological replay of completed trades by exit time.
type AccountState struct {
	InitialBalance float64
	CurrentBalance float64
	PeakBalance    float64
	// Equity is CurrentBalance plus the last unrealized PnL mark.
	Equity float64
	// MaxDrawdown is the largest peak-to-trough decline of the balance.
	MaxDrawdown float64

	DailyPnL        map[string]float64
	DailyTradeCount map[string]int
	// DayStartBalance is the balance before the first exit of each trading day.
	DayStartBalance map[string]float64
	TradingDays     []string

	// CompletedTrades are ordered by exit time.
	CompletedTrades []*types.Trade
	OpenTrades      []*types.Trade
}

// dateOf is the UTC calendar day of t.
func dateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// exitTime is when a completed trade realized its PnL.
func exitTime(trade *types.Trade) time.Time {
	return trade.ExitFilledAt.TakeOr(trade.CreatedAt)
}

func sortByExit(trades []*types.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := exitTime(trades[i]), exitTime(trades[j])
		if !a.Equal(b) {
			return a.Before(b)
		}

		return trades[i].ID < trades[j].ID
	})
}

// replay rebuilds the balances from scratch in exit order.
func replay(initial float64, completed, open []*types.Trade, unrealized decimal.Decimal) AccountState {
	sortByExit(completed)

	state := AccountState{
		InitialBalance:  initial,
		CurrentBalance:  initial,
		PeakBalance:     initial,
		Equity:          initial,
		MaxDrawdown:     0,
		DailyPnL:        make(map[string]float64),
		DailyTradeCount: make(map[string]int),
		DayStartBalance: make(map[string]float64),
		TradingDays:     nil,
		CompletedTrades: completed,
		OpenTrades:      open,
	}

	balance := decimal.NewFromFloat(initial)
	peak := balance
	maxDrawdown := decimal.Zero
	daily := make(map[string]decimal.Decimal)

	for _, trade := range completed {
		day := dateOf(exitTime(trade))
		if _, seen := daily[day]; !seen {
			state.DayStartBalance[day] = balance.InexactFloat64()
			state.TradingDays = append(state.TradingDays, day)
			daily[day] = decimal.Zero
		}

		pnl := decimal.NewFromFloat(trade.PnL.TakeOr(0))
		balance = balance.Add(pnl)
		daily[day] = daily[day].Add(pnl)
		state.DailyTradeCount[day]++

		if balance.GreaterThan(peak) {
			peak = balance
		}

		if dd := peak.Sub(balance); dd.GreaterThan(maxDrawdown) {
			maxDrawdown = dd
		}
	}

	equity := balance.Add(unrealized)
	if dd := peak.Sub(equity); dd.GreaterThan(maxDrawdown) {
		maxDrawdown = dd
	}

	for day, pnl := range daily {
		state.DailyPnL[day] = pnl.InexactFloat64()
	}

	state.CurrentBalance = balance.InexactFloat64()
	state.PeakBalance = peak.InexactFloat64()
	state.Equity = equity.InexactFloat64()
	state.MaxDrawdown = maxDrawdown.InexactFloat64()

	return state
}

// clone copies the maps and slices so callers cannot mutate the ledger.
func (s AccountState) clone() AccountState {
	c := s
	c.DailyPnL = make(map[string]float64, len(s.DailyPnL))
	c.DailyTradeCount = make(map[string]int, len(s.DailyTradeCount))
	c.DayStartBalance = make(map[string]float64, len(s.DayStartBalance))

	for k, v := range s.DailyPnL {
		c.DailyPnL[k] = v
	}

	for k, v := range s.DailyTradeCount {
		c.DailyTradeCount[k] = v
	}

	for k, v := range s.DayStartBalance {
		c.DayStartBalance[k] = v
	}

	c.TradingDays = append([]string(nil), s.TradingDays...)
	c.CompletedTrades = make([]*types.Trade, len(s.CompletedTrades))
	c.OpenTrades = make([]*types.Trade, len(s.OpenTrades))

	for i, t := range s.CompletedTrades {
		c.CompletedTrades[i] = t.Clone()
	}

	for i, t := range s.OpenTrades {
		c.OpenTrades[i] = t.Clone()
	}

	return c
}
