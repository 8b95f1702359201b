package types

import "time"

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Violation is one rule breach found by the evaluator.
type Violation struct {
	Rule     string         `json:"rule" yaml:"rule"`
	Message  string         `json:"message" yaml:"message"`
	Severity Severity       `json:"severity" yaml:"severity"`
	Details  map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Metrics are computed independently of the violations.
type Metrics struct {
	InitialBalance        float64 `json:"initial_balance" yaml:"initial_balance"`
	FinalBalance          float64 `json:"final_balance" yaml:"final_balance"`
	Equity                float64 `json:"equity" yaml:"equity"`
	PeakBalance           float64 `json:"peak_balance" yaml:"peak_balance"`
	TotalPnL              float64 `json:"total_pnl" yaml:"total_pnl"`
	TotalPnLPercentage    float64 `json:"total_pnl_percentage" yaml:"total_pnl_percentage"`
	MaxDrawdown           float64 `json:"max_drawdown" yaml:"max_drawdown"`
	MaxDrawdownPercentage float64 `json:"max_drawdown_percentage" yaml:"max_drawdown_percentage"`
	TradingDays           int     `json:"trading_days" yaml:"trading_days"`
	TotalTrades           int     `json:"total_trades" yaml:"total_trades"`
	WinningTrades         int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades          int     `json:"losing_trades" yaml:"losing_trades"`
	OpenTrades            int     `json:"open_trades" yaml:"open_trades"`
	WinRate               float64 `json:"win_rate" yaml:"win_rate"`
}

// EvaluationResult is the outcome of evaluating one account against one rule set.
type EvaluationResult struct {
	PropFirmName string      `json:"prop_firm_name" yaml:"prop_firm_name"`
	Passed       bool        `json:"passed" yaml:"passed"`
	Violations   []Violation `json:"violations" yaml:"violations"`
	Metrics      Metrics     `json:"metrics" yaml:"metrics"`
	// StartDate is the earliest trade creation, EndDate the latest exit.
	StartDate time.Time `json:"start_date" yaml:"start_date"`
	EndDate   time.Time `json:"end_date" yaml:"end_date"`
}

// HasErrors reports whether any violation is error severity.
func (r *EvaluationResult) HasErrors() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}

	return false
}

// EvaluationRecord is the persisted form of an EvaluationResult.
type EvaluationRecord struct {
	ID        string           `json:"id" yaml:"id"`
	Channel   string           `json:"channel" yaml:"channel"`
	Result    EvaluationResult `json:"result" yaml:"result"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}
