package evaluator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
	"github.com/shopspring/decimal"
)

type check func(rule *types.PropFirmRule, s *AccountState) []types.Violation

// checks run in this order, which is also the order of the violations.
var checks = []check{
	checkProfitTarget,
	checkMaxDrawdown,
	checkDailyDrawdown,
	checkMinTradingDays,
	checkMinTradesPerDay,
	checkMaxRiskPerTrade,
	checkStopLossRequired,
	checkMaxProfitPerDay,
	checkMaxProfitPerTrade,
	checkShortTrades,
	checkReverseTrading,
}

// fraction returns pct percent of base.
func fraction(base, pct float64) float64 {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

func violation(rule string, severity types.Severity, details map[string]any, format string, args ...any) types.Violation {
	return types.Violation{
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
		Details:  details,
	}
}

func checkProfitTarget(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.ProfitTarget.IsNone() {
		return nil
	}

	target := rule.ProfitTarget.Unwrap()
	actual := utils.PercentOf(s.CurrentBalance-s.InitialBalance, s.InitialBalance)

	if actual >= target {
		return nil
	}

	return []types.Violation{violation(types.RuleProfitTarget, types.SeverityError,
		map[string]any{"target": target, "actual": actual},
		"profit target of %.2f%% not reached (%.2f%%)", target, actual,
	)}
}

func checkMaxDrawdown(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MaxDrawdown.IsNone() {
		return nil
	}

	limit := rule.MaxDrawdown.Unwrap()
	actual := utils.PercentOf(s.MaxDrawdown, s.InitialBalance)

	if actual <= limit {
		return nil
	}

	return []types.Violation{violation(types.RuleMaxDrawdown, types.SeverityError,
		map[string]any{"limit": limit, "actual": actual, "amount": s.MaxDrawdown},
		"max drawdown %.2f%% exceeds the %.2f%% limit", actual, limit,
	)}
}

func checkDailyDrawdown(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.DailyDrawdown.IsNone() {
		return nil
	}

	pct := rule.DailyDrawdown.Unwrap()
	mode := rule.DrawdownMode()

	var out []types.Violation

	for _, day := range s.TradingDays {
		loss := -s.DailyPnL[day]
		if loss <= 0 {
			continue
		}

		base := s.InitialBalance
		if mode == types.DailyDrawdownBalance {
			base = s.DayStartBalance[day]
		}

		limit := fraction(base, pct)
		if loss <= limit {
			continue
		}

		out = append(out, violation(types.RuleDailyDrawdown, types.SeverityError,
			map[string]any{"date": day, "loss": loss, "limit": limit, "mode": string(mode)},
			"daily loss of %.2f on %s exceeds the limit of %.2f", loss, day, limit,
		))
	}

	return out
}

func checkMinTradingDays(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MinTradingDays.IsNone() {
		return nil
	}

	required := rule.MinTradingDays.Unwrap()
	if len(s.TradingDays) >= required {
		return nil
	}

	return []types.Violation{violation(types.RuleMinTradingDays, types.SeverityError,
		map[string]any{"required": required, "actual": len(s.TradingDays)},
		"traded on %d days, %d required", len(s.TradingDays), required,
	)}
}

func checkMinTradesPerDay(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MinTradesPerDay.IsNone() {
		return nil
	}

	required := rule.MinTradesPerDay.Unwrap()

	var out []types.Violation

	for _, day := range s.TradingDays {
		count := s.DailyTradeCount[day]
		if count >= required {
			continue
		}

		out = append(out, violation(types.RuleMinTradesPerDay, types.SeverityWarning,
			map[string]any{"date": day, "required": required, "actual": count},
			"%d trades on %s, %d required", count, day, required,
		))
	}

	return out
}

// tradeRisk is the loss if the stop is hit: the stop distance times the
// leveraged quantity, in account currency. Multiplying the stop distance by
// risk_percentage/100 of the initial balance instead would mix price units
// into a currency amount, so the percentage is only used on its own: trades
// whose stop sits at breakeven or that carry no quantity are charged
// risk_percentage of the initial balance.
func tradeRisk(t *types.Trade, initial float64) (float64, bool) {
	if t.HasStopLoss() && !t.StopLossBreakeven && t.Quantity > 0 {
		return decimal.NewFromFloat(t.EntryPrice).
			Sub(decimal.NewFromFloat(t.StopLoss)).
			Abs().
			Mul(decimal.NewFromFloat(t.Quantity)).
			Mul(decimal.NewFromFloat(t.EffectiveLeverage())).
			InexactFloat64(), true
	}

	if t.RiskPercentage > 0 {
		return fraction(initial, t.RiskPercentage), true
	}

	return 0, false
}

// allTrades lists completed trades by exit time followed by open trades by creation.
func allTrades(s *AccountState) []*types.Trade {
	open := append([]*types.Trade(nil), s.OpenTrades...)
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}

		return open[i].ID < open[j].ID
	})

	return append(append([]*types.Trade(nil), s.CompletedTrades...), open...)
}

func checkMaxRiskPerTrade(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MaxRiskPerTrade.IsNone() {
		return nil
	}

	pct := rule.MaxRiskPerTrade.Unwrap()
	limit := fraction(s.InitialBalance, pct)

	var out []types.Violation

	for _, t := range allTrades(s) {
		risk, ok := tradeRisk(t, s.InitialBalance)
		if !ok || risk <= limit {
			continue
		}

		out = append(out, violation(types.RuleMaxRiskPerTrade, types.SeverityError,
			map[string]any{"trade_id": t.ID, "risk": risk, "limit": limit},
			"trade %s risks %.2f, above %.2f%% of the initial balance (%.2f)", t.ID, risk, pct, limit,
		))
	}

	return out
}

func checkStopLossRequired(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if !rule.StopLossRequired {
		return nil
	}

	var out []types.Violation

	for _, t := range allTrades(s) {
		if t.HasStopLoss() {
			continue
		}

		out = append(out, violation(types.RuleStopLossRequired, types.SeverityError,
			map[string]any{"trade_id": t.ID},
			"trade %s has no stop-loss", t.ID,
		))
	}

	return out
}

func checkMaxProfitPerDay(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MaxProfitPerDay.IsNone() {
		return nil
	}

	limit := rule.MaxProfitPerDay.Unwrap()

	var out []types.Violation

	for _, day := range s.TradingDays {
		profit := s.DailyPnL[day]
		if profit <= limit {
			continue
		}

		out = append(out, violation(types.RuleMaxProfitPerDay, types.SeverityWarning,
			map[string]any{"date": day, "profit": profit, "limit": limit},
			"profit of %.2f on %s exceeds the daily cap of %.2f", profit, day, limit,
		))
	}

	return out
}

func checkMaxProfitPerTrade(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MaxProfitPerTrade.IsNone() {
		return nil
	}

	limit := rule.MaxProfitPerTrade.Unwrap()

	var out []types.Violation

	for _, t := range s.CompletedTrades {
		profit := t.PnL.TakeOr(0)
		if profit <= limit {
			continue
		}

		out = append(out, violation(types.RuleMaxProfitPerTrade, types.SeverityWarning,
			map[string]any{"trade_id": t.ID, "profit": profit, "limit": limit},
			"trade %s made %.2f, above the per-trade cap of %.2f", t.ID, profit, limit,
		))
	}

	return out
}

func checkShortTrades(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.MinTradeDuration.IsNone() || rule.MaxShortTradesPercentage.IsNone() || len(s.CompletedTrades) == 0 {
		return nil
	}

	minDuration := rule.MinTradeDuration.Unwrap()
	limit := rule.MaxShortTradesPercentage.Unwrap()
	short := 0

	for _, t := range s.CompletedTrades {
		held := t.HoldingDuration()
		if held.IsSome() && held.Unwrap() < minDuration {
			short++
		}
	}

	share := utils.PercentOf(float64(short), float64(len(s.CompletedTrades)))
	if share <= limit {
		return nil
	}

	return []types.Violation{violation(types.RuleShortTrades, types.SeverityError,
		map[string]any{"short_trades": short, "total_trades": len(s.CompletedTrades), "percentage": share, "limit": limit},
		"%.2f%% of trades were held less than %s (limit %.2f%%)", share, minDuration, limit,
	)}
}

// filledWindow is the interval a completed trade held a position.
func filledWindow(t *types.Trade) (time.Time, time.Time, bool) {
	if t.EntryFilledAt.IsNone() || t.ExitFilledAt.IsNone() {
		return time.Time{}, time.Time{}, false
	}

	return t.EntryFilledAt.Unwrap(), t.ExitFilledAt.Unwrap(), true
}

func checkReverseTrading(rule *types.PropFirmRule, s *AccountState) []types.Violation {
	if rule.ReverseTradingAllowed || rule.ReverseTradingTimeLimit.IsNone() {
		return nil
	}

	limit := rule.ReverseTradingTimeLimit.Unwrap()
	trades := s.CompletedTrades

	var out []types.Violation

	for i := 0; i < len(trades); i++ {
		startA, endA, ok := filledWindow(trades[i])
		if !ok {
			continue
		}

		for j := i + 1; j < len(trades); j++ {
			if trades[i].Direction() == trades[j].Direction() {
				continue
			}

			startB, endB, ok := filledWindow(trades[j])
			if !ok {
				continue
			}

			overlap := minTime(endA, endB).Sub(maxTime(startA, startB))
			if overlap <= 0 || overlap < limit {
				continue
			}

			out = append(out, violation(types.RuleReverseTrading, types.SeverityError,
				map[string]any{
					"trade_id":        trades[i].ID,
					"opposite_id":     trades[j].ID,
					"overlap_seconds": math.Round(overlap.Seconds()),
					"limit_seconds":   math.Round(limit.Seconds()),
				},
				"trades %s and %s were held in opposite directions for %s (limit %s)",
				trades[i].ID, trades[j].ID, overlap, limit,
			))
		}
	}

	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}
