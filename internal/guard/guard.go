// Package guard vetoes proposed trades whose worst-case loss would breach a
// funded-account rule set before they are persisted.
package guard

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/shopspring/decimal"
)

// WorstCaseLoss is the loss if the stop-loss is hit: the stop distance times
// the leveraged quantity. It is +Inf when the trade has no stop-loss.
func WorstCaseLoss(entry, stop, quantity, leverage float64) float64 {
	if stop <= 0 {
		return math.Inf(1)
	}

	if leverage <= 0 {
		leverage = 1
	}

	return decimal.NewFromFloat(entry).
		Sub(decimal.NewFromFloat(stop)).
		Abs().
		Mul(decimal.NewFromFloat(quantity)).
		Mul(decimal.NewFromFloat(leverage)).
		InexactFloat64()
}

// ValidatePreTrade applies the proposed trade's worst-case loss to each rule
// set's ledger snapshot and runs the arithmetic rule checks against the
// resulting state. Snapshots are keyed by rule name; a missing snapshot is
// an empty ledger. One result is returned per rule, in order.
func ValidatePreTrade(proposed types.ProposedTrade, rules []types.PropFirmRule, snapshots map[string]types.LedgerSnapshot) []types.PreTradeValidationResult {
	worst := WorstCaseLoss(proposed.EntryPrice, proposed.StopLoss, proposed.Quantity, proposed.Leverage)
	results := make([]types.PreTradeValidationResult, 0, len(rules))

	for i := range rules {
		rule := &rules[i]
		violations := validateRule(rule, proposed, worst, snapshots[rule.Name])

		results = append(results, types.PreTradeValidationResult{
			PropFirm:      rule.Name,
			Allowed:       len(violations) == 0,
			Violations:    violations,
			WorstCaseLoss: worst,
		})
	}

	return results
}

func validateRule(rule *types.PropFirmRule, proposed types.ProposedTrade, worst float64, snap types.LedgerSnapshot) []string {
	violations := make([]string, 0)
	unbounded := math.IsInf(worst, 1)

	if rule.StopLossRequired && proposed.StopLoss <= 0 {
		violations = append(violations, "stop-loss is required")
	}

	if rule.MaxRiskPerTrade.IsSome() {
		limit := percent(rule.InitialBalance, rule.MaxRiskPerTrade.Unwrap())
		if unbounded {
			violations = append(violations, fmt.Sprintf("risk is unbounded without a stop-loss (limit %.2f)", limit))
		} else if worst > limit {
			violations = append(violations, fmt.Sprintf("risk of %.2f exceeds %.2f%% of the initial balance (%.2f)", worst, rule.MaxRiskPerTrade.Unwrap(), limit))
		}
	}

	// Drawdown checks use the trade's loss plus the exposure the caller already carries.
	initial := decimal.NewFromFloat(rule.InitialBalance)
	exposure := decimal.NewFromFloat(proposed.AdditionalWorstCaseLoss)

	if !unbounded {
		exposure = exposure.Add(decimal.NewFromFloat(worst))
	}

	if rule.MaxDrawdown.IsSome() {
		limit := rule.MaxDrawdown.Unwrap()
		peak := initial.Add(decimal.Max(decimal.NewFromFloat(snap.PeakPnL), decimal.Zero))
		after := initial.Add(decimal.NewFromFloat(snap.RealizedPnL)).Sub(exposure)
		drawdown := peak.Sub(after).Div(initial).Mul(decimal.NewFromInt(100)).InexactFloat64()

		switch {
		case unbounded:
			violations = append(violations, fmt.Sprintf("drawdown is unbounded without a stop-loss (limit %.2f%%)", limit))
		case drawdown > limit:
			violations = append(violations, fmt.Sprintf("drawdown would reach %.2f%% (limit %.2f%%)", drawdown, limit))
		}
	}

	if rule.DailyDrawdown.IsSome() {
		pct := rule.DailyDrawdown.Unwrap()

		base := initial
		if rule.DrawdownMode() == types.DailyDrawdownBalance {
			base = initial.Add(decimal.NewFromFloat(snap.DayStartPnL))
		}

		limit := base.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
		loss := exposure.Sub(decimal.NewFromFloat(snap.DailyPnL))

		switch {
		case unbounded:
			violations = append(violations, fmt.Sprintf("daily loss is unbounded without a stop-loss (limit %s)", limit.StringFixed(2)))
		case loss.GreaterThan(limit):
			violations = append(violations, fmt.Sprintf("daily loss would reach %s (limit %s)", loss.StringFixed(2), limit.StringFixed(2)))
		}
	}

	return violations
}

func percent(base, pct float64) float64 {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}
