package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// DailyDrawdownMode selects the base the daily loss limit is measured against.
type DailyDrawdownMode string

const (
	// DailyDrawdownBalance measures the loss against the balance at the start of the day.
	DailyDrawdownBalance DailyDrawdownMode = "balance"
	// DailyDrawdownSwing measures the loss against the fixed initial balance.
	DailyDrawdownSwing DailyDrawdownMode = "swing"
)

// Rule names used in violations.
const (
	RuleProfitTarget      = "profitTarget"
	RuleMaxDrawdown       = "maxDrawdown"
	RuleDailyDrawdown     = "dailyDrawdown"
	RuleMinTradingDays    = "minTradingDays"
	RuleMinTradesPerDay   = "minTradesPerDay"
	RuleMaxRiskPerTrade   = "maxRiskPerTrade"
	RuleStopLossRequired  = "stopLossRequired"
	RuleMaxProfitPerDay   = "maxProfitPerDay"
	RuleMaxProfitPerTrade = "maxProfitPerTrade"
	RuleShortTrades       = "shortTrades"
	RuleReverseTrading    = "reverseTrading"
)

// PropFirmRule is the immutable rule set of one funded-account program.
// Percentages are expressed in percent (5 means 5%), profit caps in account currency.
type PropFirmRule struct {
	Name           string  `json:"name" validate:"required"`
	InitialBalance float64 `json:"initial_balance" validate:"gt=0"`

	ProfitTarget      optional.Option[float64] `json:"profit_target"`
	MaxDrawdown       optional.Option[float64] `json:"max_drawdown"`
	DailyDrawdown     optional.Option[float64] `json:"daily_drawdown"`
	DailyDrawdownMode DailyDrawdownMode        `json:"daily_drawdown_mode" validate:"omitempty,oneof=balance swing"`

	MinTradingDays  optional.Option[int] `json:"min_trading_days"`
	MinTradesPerDay optional.Option[int] `json:"min_trades_per_day"`

	MaxRiskPerTrade  optional.Option[float64] `json:"max_risk_per_trade"`
	StopLossRequired bool                     `json:"stop_loss_required"`

	MaxProfitPerDay   optional.Option[float64] `json:"max_profit_per_day"`
	MaxProfitPerTrade optional.Option[float64] `json:"max_profit_per_trade"`

	MinTradeDuration         optional.Option[time.Duration] `json:"min_trade_duration"`
	MaxShortTradesPercentage optional.Option[float64]       `json:"max_short_trades_percentage"`

	ReverseTradingAllowed   bool                           `json:"reverse_trading_allowed"`
	ReverseTradingTimeLimit optional.Option[time.Duration] `json:"reverse_trading_time_limit"`
}

// Validate checks the static fields with validator and the optional
// thresholds by hand, since validator does not see inside optional.Option.
func (r *PropFirmRule) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRule, "invalid prop firm rule", err)
	}

	percentages := []struct {
		name  string
		value optional.Option[float64]
	}{
		{"profit_target", r.ProfitTarget},
		{"max_drawdown", r.MaxDrawdown},
		{"daily_drawdown", r.DailyDrawdown},
		{"max_risk_per_trade", r.MaxRiskPerTrade},
		{"max_short_trades_percentage", r.MaxShortTradesPercentage},
	}
	for _, p := range percentages {
		if p.value.IsSome() && (p.value.Unwrap() <= 0 || p.value.Unwrap() > 100) {
			return errors.Newf(errors.ErrCodeInvalidRule, "%s: %s must be within (0, 100], got %v", r.Name, p.name, p.value.Unwrap())
		}
	}

	if r.MaxProfitPerDay.IsSome() && r.MaxProfitPerDay.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidRule, "%s: max_profit_per_day must be positive", r.Name)
	}

	if r.MaxProfitPerTrade.IsSome() && r.MaxProfitPerTrade.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidRule, "%s: max_profit_per_trade must be positive", r.Name)
	}

	if r.MinTradingDays.IsSome() && r.MinTradingDays.Unwrap() < 0 {
		return errors.Newf(errors.ErrCodeInvalidRule, "%s: min_trading_days must not be negative", r.Name)
	}

	if r.MinTradesPerDay.IsSome() && r.MinTradesPerDay.Unwrap() < 0 {
		return errors.Newf(errors.ErrCodeInvalidRule, "%s: min_trades_per_day must not be negative", r.Name)
	}

	if r.MinTradeDuration.IsSome() != r.MaxShortTradesPercentage.IsSome() {
		return errors.Newf(errors.ErrCodeInvalidRule, "%s: min_trade_duration and max_short_trades_percentage must be set together", r.Name)
	}

	return nil
}

// DrawdownMode returns the configured mode, defaulting to the day-start balance.
func (r *PropFirmRule) DrawdownMode() DailyDrawdownMode {
	if r.DailyDrawdownMode == "" {
		return DailyDrawdownBalance
	}

	return r.DailyDrawdownMode
}
