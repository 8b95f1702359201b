package types

import "time"

// ProposedTrade is a trade that has been parsed but not persisted yet.
type ProposedTrade struct {
	Channel     string    `json:"channel" validate:"required"`
	TradingPair string    `json:"trading_pair" validate:"required"`
	EntryPrice  float64   `json:"entry_price" validate:"gt=0"`
	StopLoss    float64   `json:"stop_loss" validate:"gte=0"`
	Quantity    float64   `json:"quantity" validate:"gt=0"`
	Leverage    float64   `json:"leverage" validate:"gte=0"`
	// AdditionalWorstCaseLoss is exposure the caller already knows about,
	// e.g. other open positions that could stop out on the same day.
	AdditionalWorstCaseLoss float64   `json:"additional_worst_case_loss" validate:"gte=0"`
	At                      time.Time `json:"at" yaml:"at"`
}

// LedgerSnapshot describes realized PnL independently of any starting balance,
// so one snapshot can be checked against rule sets with different balances.
type LedgerSnapshot struct {
	// RealizedPnL is the sum of all completed trades.
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// PeakPnL is the high-water mark of cumulative realized PnL (never below zero).
	PeakPnL float64 `json:"peak_pnl" yaml:"peak_pnl"`
	// DayStartPnL is the cumulative realized PnL before the first trade of Date.
	DayStartPnL float64 `json:"day_start_pnl" yaml:"day_start_pnl"`
	// DailyPnL is the realized PnL of Date.
	DailyPnL float64 `json:"daily_pnl" yaml:"daily_pnl"`
	Date     string  `json:"date" yaml:"date"`
}

// PreTradeValidationResult is the guard's answer for one rule set.
type PreTradeValidationResult struct {
	PropFirm      string   `json:"prop_firm" yaml:"prop_firm"`
	Allowed       bool     `json:"allowed" yaml:"allowed"`
	Violations    []string `json:"violations" yaml:"violations"`
	WorstCaseLoss float64  `json:"worst_case_loss" yaml:"worst_case_loss"`
}
