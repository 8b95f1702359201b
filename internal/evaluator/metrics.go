package evaluator

import (
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
	"github.com/shopspring/decimal"
)

func metrics(s *AccountState) types.Metrics {
	winning, losing := 0, 0

	for _, t := range s.CompletedTrades {
		switch pnl := t.PnL.TakeOr(0); {
		case pnl > 0:
			winning++
		case pnl < 0:
			losing++
		}
	}

	total := len(s.CompletedTrades)
	winRate := 0.0

	if total > 0 {
		winRate = decimal.NewFromInt(int64(winning)).Div(decimal.NewFromInt(int64(total))).InexactFloat64()
	}

	pnl := decimal.NewFromFloat(s.CurrentBalance).Sub(decimal.NewFromFloat(s.InitialBalance)).InexactFloat64()

	return types.Metrics{
		InitialBalance:        s.InitialBalance,
		FinalBalance:          s.CurrentBalance,
		Equity:                s.Equity,
		PeakBalance:           s.PeakBalance,
		TotalPnL:              pnl,
		TotalPnLPercentage:    utils.PercentOf(pnl, s.InitialBalance),
		MaxDrawdown:           s.MaxDrawdown,
		MaxDrawdownPercentage: utils.PercentOf(s.MaxDrawdown, s.InitialBalance),
		TradingDays:           len(s.TradingDays),
		TotalTrades:           total,
		WinningTrades:         winning,
		LosingTrades:          losing,
		OpenTrades:            len(s.OpenTrades),
		WinRate:               winRate,
	}
}

func startDate(s *AccountState) time.Time {
	var start time.Time

	for _, t := range allTrades(s) {
		if start.IsZero() || t.CreatedAt.Before(start) {
			start = t.CreatedAt
		}
	}

	return start.UTC()
}

func endDate(s *AccountState) time.Time {
	var end time.Time

	for _, t := range s.CompletedTrades {
		if exit := exitTime(t); exit.After(end) {
			end = exit
		}
	}

	return end.UTC()
}
