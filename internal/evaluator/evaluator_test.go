package evaluator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type EvaluatorTestSuite struct {
	suite.Suite
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorTestSuite))
}

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(day int, clock string) time.Time {
	d, err := time.ParseDuration(clock)
	if err != nil {
		panic(err)
	}

	return day0.AddDate(0, 0, day).Add(d)
}

// longTrade is a settled long position held between filled and exit.
func longTrade(id string, pnl float64, filled, exit time.Time) *types.Trade {
	//nolint:exhaustruct
	return &types.Trade{
		ID:            id,
		Channel:       "alpha",
		TradingPair:   "BTCUSDT",
		EntryPrice:    100,
		StopLoss:      90,
		TakeProfits:   []float64{110},
		Quantity:      1,
		Leverage:      1,
		Status:        types.TradeStatusClosed,
		CreatedAt:     filled.Add(-time.Minute),
		EntryFilledAt: optional.Some(filled),
		ExitFilledAt:  optional.Some(exit),
		ExitPrice:     optional.Some(110.0),
		PnL:           optional.Some(pnl),
	}
}

func shortTrade(id string, pnl float64, filled, exit time.Time) *types.Trade {
	t := longTrade(id, pnl, filled, exit)
	t.StopLoss = 110
	t.TakeProfits = []float64{90}

	return t
}

func (suite *EvaluatorTestSuite) rule(configure func(r *types.PropFirmRule)) types.PropFirmRule {
	//nolint:exhaustruct
	r := types.PropFirmRule{
		Name:           "test-firm",
		InitialBalance: 10000,
	}
	if configure != nil {
		configure(&r)
	}

	return r
}

func (suite *EvaluatorTestSuite) evaluate(rule types.PropFirmRule, trades ...*types.Trade) (*Evaluator, types.EvaluationResult) {
	e, err := New(rule)
	suite.Require().NoError(err)

	e.AddTrades(trades)

	return e, e.Evaluate()
}

func rulesOf(violations []types.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Rule)
	}

	return out
}

func (suite *EvaluatorTestSuite) TestDailyDrawdownFlagsLosingDay() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.DailyDrawdown = optional.Some(5.0) })

	_, result := suite.evaluate(rule,
		longTrade("t1", -400, at(0, "9h"), at(0, "10h")),
		longTrade("t2", -200, at(0, "11h"), at(0, "12h")),
	)

	suite.False(result.Passed)
	suite.Require().Len(result.Violations, 1)

	v := result.Violations[0]
	suite.Equal(types.RuleDailyDrawdown, v.Rule)
	suite.Equal(types.SeverityError, v.Severity)
	suite.Equal("2024-03-01", v.Details["date"])
	suite.InDelta(600.0, v.Details["loss"], 1e-9)
	suite.InDelta(500.0, v.Details["limit"], 1e-9)
}

func (suite *EvaluatorTestSuite) TestDailyDrawdownModes() {
	trades := []*types.Trade{
		longTrade("t1", 2000, at(0, "9h"), at(0, "10h")),
		longTrade("t2", -550, at(1, "9h"), at(1, "10h")),
	}

	tests := []struct {
		name       string
		mode       types.DailyDrawdownMode
		violations int
	}{
		{"day start balance allows 600", types.DailyDrawdownBalance, 0},
		{"default mode is day start balance", "", 0},
		{"swing mode uses the initial balance", types.DailyDrawdownSwing, 1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			rule := suite.rule(func(r *types.PropFirmRule) {
				r.DailyDrawdown = optional.Some(5.0)
				r.DailyDrawdownMode = tc.mode
			})

			_, result := suite.evaluate(rule, trades...)
			suite.Len(result.Violations, tc.violations)
		})
	}
}

func (suite *EvaluatorTestSuite) TestReverseTradingOverlap() {
	a := longTrade("a", 10, at(0, "10h"), at(0, "10h5m"))
	b := shortTrade("b", 10, at(0, "10h3m30s"), at(0, "10h10m"))

	tests := []struct {
		name       string
		allowed    bool
		limit      time.Duration
		violations int
	}{
		{"overlap above the limit", false, time.Minute, 1},
		{"overlap equal to the limit", false, 90 * time.Second, 1},
		{"overlap below the limit", false, 2 * time.Minute, 0},
		{"reverse trading allowed", true, time.Minute, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			rule := suite.rule(func(r *types.PropFirmRule) {
				r.ReverseTradingAllowed = tc.allowed
				r.ReverseTradingTimeLimit = optional.Some(tc.limit)
			})

			_, result := suite.evaluate(rule, a, b)
			suite.Require().Len(result.Violations, tc.violations)

			if tc.violations > 0 {
				v := result.Violations[0]
				suite.Equal(types.RuleReverseTrading, v.Rule)
				suite.Equal("a", v.Details["trade_id"])
				suite.Equal("b", v.Details["opposite_id"])
				suite.Equal(90.0, v.Details["overlap_seconds"])
			}
		})
	}
}

func (suite *EvaluatorTestSuite) TestSameDirectionNeverReverses() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.ReverseTradingTimeLimit = optional.Some(time.Second) })

	_, result := suite.evaluate(rule,
		longTrade("a", 10, at(0, "10h"), at(0, "11h")),
		longTrade("b", 10, at(0, "10h"), at(0, "11h")),
	)

	suite.Empty(result.Violations)
}

func (suite *EvaluatorTestSuite) TestEvaluateIsDeterministic() {
	rule := suite.rule(func(r *types.PropFirmRule) {
		r.ProfitTarget = optional.Some(10.0)
		r.DailyDrawdown = optional.Some(2.0)
		r.MaxProfitPerTrade = optional.Some(100.0)
		r.ReverseTradingTimeLimit = optional.Some(time.Second)
	})

	e, first := suite.evaluate(rule,
		longTrade("t1", 500, at(0, "9h"), at(0, "10h")),
		shortTrade("t2", -300, at(0, "9h30m"), at(1, "10h")),
		longTrade("t3", 150, at(2, "9h"), at(2, "10h")),
	)
	second := e.Evaluate()

	a, err := json.Marshal(first)
	suite.Require().NoError(err)
	b, err := json.Marshal(second)
	suite.Require().NoError(err)
	suite.Equal(string(a), string(b))
	suite.Equal(
		[]string{types.RuleProfitTarget, types.RuleDailyDrawdown, types.RuleMaxProfitPerTrade, types.RuleMaxProfitPerTrade, types.RuleReverseTrading},
		rulesOf(first.Violations),
	)
}

func (suite *EvaluatorTestSuite) TestPeakUsesExitOrder() {
	rule := suite.rule(nil)

	e, result := suite.evaluate(rule,
		longTrade("late", -500, at(1, "9h"), at(1, "10h")),
		longTrade("early", 1000, at(0, "9h"), at(0, "10h")),
	)

	state := e.State()
	suite.Equal(11000.0, state.PeakBalance)
	suite.Equal(10500.0, state.CurrentBalance)
	suite.Equal(500.0, state.MaxDrawdown)
	suite.Equal([]string{"2024-03-01", "2024-03-02"}, state.TradingDays)
	suite.Equal("early", state.CompletedTrades[0].ID)
	suite.Equal(11000.0, result.Metrics.PeakBalance)
}

func (suite *EvaluatorTestSuite) TestPeakIsMonotonic() {
	e, err := New(suite.rule(nil))
	suite.Require().NoError(err)

	last := e.State().PeakBalance
	pnls := []float64{300, -200, 50, -700, 900, -100}

	for i, pnl := range pnls {
		e.AddTrade(longTrade(string(rune('a'+i)), pnl, at(i, "9h"), at(i, "10h")))

		peak := e.State().PeakBalance
		suite.GreaterOrEqual(peak, last)
		last = peak
	}

	suite.Equal(10350.0, last)
}

func (suite *EvaluatorTestSuite) TestProfitTarget() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.ProfitTarget = optional.Some(8.0) })

	_, reached := suite.evaluate(rule, longTrade("t1", 800, at(0, "9h"), at(0, "10h")))
	suite.True(reached.Passed)
	suite.Empty(reached.Violations)

	_, missed := suite.evaluate(rule, longTrade("t1", 700, at(0, "9h"), at(0, "10h")))
	suite.False(missed.Passed)
	suite.Equal([]string{types.RuleProfitTarget}, rulesOf(missed.Violations))
	suite.InDelta(7.0, missed.Violations[0].Details["actual"], 1e-9)
}

func (suite *EvaluatorTestSuite) TestMaxDrawdown() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.MaxDrawdown = optional.Some(10.0) })

	_, result := suite.evaluate(rule,
		longTrade("t1", 500, at(0, "9h"), at(0, "10h")),
		longTrade("t2", -1600, at(1, "9h"), at(1, "10h")),
	)

	suite.Require().Len(result.Violations, 1)
	suite.Equal(types.RuleMaxDrawdown, result.Violations[0].Rule)
	suite.InDelta(16.0, result.Metrics.MaxDrawdownPercentage, 1e-9)
}

func (suite *EvaluatorTestSuite) TestEquityMarkCountsTowardsDrawdown() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.MaxDrawdown = optional.Some(5.0) })

	e, err := New(rule)
	suite.Require().NoError(err)

	e.AddTrade(longTrade("t1", 200, at(0, "9h"), at(0, "10h")))
	e.UpdateEquity(-800)

	state := e.State()
	suite.Equal(10200.0, state.CurrentBalance)
	suite.Equal(9400.0, state.Equity)
	suite.Equal(800.0, state.MaxDrawdown)

	result := e.Evaluate()
	suite.Equal([]string{types.RuleMaxDrawdown}, rulesOf(result.Violations))
	suite.Equal(9400.0, result.Metrics.Equity)
	suite.Equal(10200.0, result.Metrics.FinalBalance)
}

func (suite *EvaluatorTestSuite) TestTradingDayCounts() {
	rule := suite.rule(func(r *types.PropFirmRule) {
		r.MinTradingDays = optional.Some(3)
		r.MinTradesPerDay = optional.Some(2)
	})

	_, result := suite.evaluate(rule,
		longTrade("t1", 10, at(0, "9h"), at(0, "10h")),
		longTrade("t2", 10, at(0, "11h"), at(0, "12h")),
		longTrade("t3", 10, at(1, "9h"), at(1, "10h")),
	)

	suite.Equal([]string{types.RuleMinTradingDays, types.RuleMinTradesPerDay}, rulesOf(result.Violations))
	suite.Equal(types.SeverityError, result.Violations[0].Severity)
	suite.Equal(types.SeverityWarning, result.Violations[1].Severity)
	suite.Equal("2024-03-02", result.Violations[1].Details["date"])
	suite.False(result.Passed)
}

func (suite *EvaluatorTestSuite) TestMaxRiskPerTrade() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.MaxRiskPerTrade = optional.Some(1.0) })

	risky := longTrade("risky", 10, at(0, "9h"), at(0, "10h"))
	risky.Quantity = 20

	breakeven := longTrade("breakeven", 10, at(0, "9h"), at(0, "10h"))
	breakeven.Quantity = 50
	breakeven.StopLoss = 100
	breakeven.StopLossBreakeven = true
	breakeven.RiskPercentage = 0.5

	safe := longTrade("safe", 10, at(0, "9h"), at(0, "10h"))
	safe.Quantity = 10

	_, result := suite.evaluate(rule, risky, breakeven, safe)

	suite.Require().Len(result.Violations, 1)
	v := result.Violations[0]
	suite.Equal("risky", v.Details["trade_id"])
	suite.InDelta(200.0, v.Details["risk"], 1e-9)
	suite.InDelta(100.0, v.Details["limit"], 1e-9)
}

func (suite *EvaluatorTestSuite) TestStopLossRequired() {
	rule := suite.rule(func(r *types.PropFirmRule) { r.StopLossRequired = true })

	open := longTrade("open", 0, at(0, "9h"), at(0, "10h"))
	open.Status = types.TradeStatusActive
	open.StopLoss = 0
	open.ExitFilledAt = optional.None[time.Time]()
	open.PnL = optional.None[float64]()

	cancelled := longTrade("cancelled", 0, at(0, "9h"), at(0, "10h"))
	cancelled.Status = types.TradeStatusCancelled
	cancelled.StopLoss = 0

	_, result := suite.evaluate(rule, longTrade("t1", 10, at(0, "9h"), at(0, "10h")), open, cancelled)

	suite.Require().Len(result.Violations, 1)
	suite.Equal("open", result.Violations[0].Details["trade_id"])
	suite.Equal(1, result.Metrics.OpenTrades)
	suite.Equal(1, result.Metrics.TotalTrades)
}

func (suite *EvaluatorTestSuite) TestProfitCapsAreWarnings() {
	rule := suite.rule(func(r *types.PropFirmRule) {
		r.MaxProfitPerDay = optional.Some(1000.0)
		r.MaxProfitPerTrade = optional.Some(800.0)
	})

	_, result := suite.evaluate(rule,
		longTrade("t1", 900, at(0, "9h"), at(0, "10h")),
		longTrade("t2", 300, at(0, "11h"), at(0, "12h")),
	)

	suite.Equal([]string{types.RuleMaxProfitPerDay, types.RuleMaxProfitPerTrade}, rulesOf(result.Violations))
	suite.True(result.Passed)
}

func (suite *EvaluatorTestSuite) TestShortTrades() {
	rule := suite.rule(func(r *types.PropFirmRule) {
		r.MinTradeDuration = optional.Some(time.Minute)
		r.MaxShortTradesPercentage = optional.Some(50.0)
	})

	_, result := suite.evaluate(rule,
		longTrade("t1", 10, at(0, "9h"), at(0, "9h0m30s")),
		longTrade("t2", 10, at(0, "10h"), at(0, "10h0m10s")),
		longTrade("t3", 10, at(0, "11h"), at(0, "12h")),
	)

	suite.Require().Len(result.Violations, 1)
	v := result.Violations[0]
	suite.Equal(types.RuleShortTrades, v.Rule)
	suite.Equal(2, v.Details["short_trades"])
	suite.InDelta(66.6666, v.Details["percentage"], 1e-3)
}

func (suite *EvaluatorTestSuite) TestMetrics() {
	pending := longTrade("pending", 0, at(0, "9h"), at(0, "10h"))
	pending.Status = types.TradeStatusPending
	pending.CreatedAt = at(0, "1h")
	pending.PnL = optional.None[float64]()

	_, result := suite.evaluate(suite.rule(nil),
		longTrade("t1", 300, at(0, "9h"), at(0, "10h")),
		shortTrade("t2", -100, at(1, "9h"), at(1, "10h")),
		longTrade("t3", 0, at(2, "9h"), at(2, "10h")),
		pending,
	)

	m := result.Metrics
	suite.True(result.Passed)
	suite.Equal(10200.0, m.FinalBalance)
	suite.Equal(200.0, m.TotalPnL)
	suite.InDelta(2.0, m.TotalPnLPercentage, 1e-9)
	suite.Equal(10300.0, m.PeakBalance)
	suite.Equal(100.0, m.MaxDrawdown)
	suite.Equal(3, m.TradingDays)
	suite.Equal(3, m.TotalTrades)
	suite.Equal(1, m.WinningTrades)
	suite.Equal(1, m.LosingTrades)
	suite.Equal(1, m.OpenTrades)
	suite.InDelta(1.0/3.0, m.WinRate, 1e-9)
	suite.Equal(at(0, "1h"), result.StartDate)
	suite.Equal(at(2, "10h"), result.EndDate)
}

func (suite *EvaluatorTestSuite) TestMissingPnLCountsAsZero() {
	t := longTrade("t1", 0, at(0, "9h"), at(0, "10h"))
	t.PnL = optional.None[float64]()

	e, result := suite.evaluate(suite.rule(nil), t)

	suite.Equal(10000.0, e.State().CurrentBalance)
	suite.Equal(1, result.Metrics.TotalTrades)
}

func (suite *EvaluatorTestSuite) TestStateIsACopy() {
	e, _ := suite.evaluate(suite.rule(nil), longTrade("t1", 100, at(0, "9h"), at(0, "10h")))

	state := e.State()
	state.DailyPnL["2024-03-01"] = -1e6
	state.CompletedTrades[0].PnL = optional.Some(-1e6)

	suite.Equal(100.0, e.State().DailyPnL["2024-03-01"])
	suite.Equal(100.0, e.State().CompletedTrades[0].PnL.Unwrap())
}

func (suite *EvaluatorTestSuite) TestSnapshot() {
	e, _ := suite.evaluate(suite.rule(nil),
		longTrade("t1", 1000, at(0, "9h"), at(0, "10h")),
		longTrade("t2", -300, at(1, "9h"), at(1, "10h")),
		longTrade("t3", 100, at(1, "11h"), at(1, "12h")),
		longTrade("t4", 50, at(2, "9h"), at(2, "10h")),
	)

	snap := e.Snapshot(at(1, "15h"))
	suite.Equal("2024-03-02", snap.Date)
	suite.InDelta(800.0, snap.RealizedPnL, 1e-9)
	suite.InDelta(1000.0, snap.PeakPnL, 1e-9)
	suite.InDelta(1000.0, snap.DayStartPnL, 1e-9)
	suite.InDelta(-200.0, snap.DailyPnL, 1e-9)

	empty := e.Snapshot(at(-1, "0h"))
	suite.Zero(empty.RealizedPnL)
	suite.Zero(empty.PeakPnL)
}

func (suite *EvaluatorTestSuite) TestNewRejectsInvalidRule() {
	_, err := New(suite.rule(func(r *types.PropFirmRule) { r.MaxDrawdown = optional.Some(150.0) }))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidRule))

	_, err = New(suite.rule(func(r *types.PropFirmRule) { r.InitialBalance = 0 }))
	suite.Require().Error(err)
}

func (suite *EvaluatorTestSuite) TestBatchAddMatchesIncrementalAdds() {
	trades := []*types.Trade{
		longTrade("late", -250, at(2, "9h"), at(2, "10h")),
		longTrade("early", 400, at(0, "9h"), at(0, "10h")),
		longTrade("middle", -100, at(1, "9h"), at(1, "10h")),
	}

	incremental, err := New(suite.rule(nil))
	suite.Require().NoError(err)

	for _, t := range trades {
		incremental.AddTrade(t)
		_ = incremental.State()
	}

	batch, err := New(suite.rule(nil))
	suite.Require().NoError(err)
	batch.AddTrades(trades)

	suite.Equal(incremental.State(), batch.State())
	suite.Equal(incremental.Evaluate(), batch.Evaluate())
	suite.Equal(10050.0, batch.State().CurrentBalance)

	// A trade added after a read is part of the next read.
	batch.AddTrade(longTrade("after", 50, at(3, "9h"), at(3, "10h")))
	suite.Equal(10100.0, batch.State().CurrentBalance)
	suite.Len(batch.State().CompletedTrades, 4)
}
