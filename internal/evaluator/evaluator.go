// Package evaluator aggregates settled trades into an account ledger and
// scores it against the rule set of a funded-account program.
package evaluator

import (
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Evaluator owns one AccountState. It is not safe for concurrent use.
type Evaluator struct {
	rule       types.PropFirmRule
	log        *zap.Logger
	completed  []*types.Trade
	open       []*types.Trade
	unrealized decimal.Decimal
	state      AccountState
	// dirty defers the ledger replay until the state is read.
	dirty      bool
}

type Option func(*Evaluator)

// WithLogger sets the logger used for data-integrity warnings.
func WithLogger(l *logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l.Logger
		}
	}
}

// New validates the rule set and returns an empty ledger for it.
func New(rule types.PropFirmRule, opts ...Option) (*Evaluator, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		rule:       rule,
		log:        zap.NewNop(),
		completed:  nil,
		open:       nil,
		unrealized: decimal.Zero,
		state:      AccountState{}, //nolint:exhaustruct
		dirty:      true,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.With(zap.String("prop_firm", rule.Name))

	return e, nil
}

// Rule returns the rule set the ledger is scored against.
func (e *Evaluator) Rule() types.PropFirmRule {
	return e.rule
}

// AddTrade records a trade. Completed trades settle into the balance by exit
// date, pending and active trades are tracked as open, and cancelled trades
// are ignored.
func (e *Evaluator) AddTrade(trade *types.Trade) {
	if trade == nil {
		return
	}

	switch {
	case trade.Status.IsCompleted():
		t := trade.Clone()
		if t.PnL.IsNone() {
			e.log.Error("completed trade has no pnl, counting it as zero",
				zap.String("trade_id", t.ID),
				zap.Int("code", int(errors.ErrCodeInvalidPnLInput)),
			)
		}

		e.completed = append(e.completed, t)
	case trade.Status == types.TradeStatusCancelled:
		return
	default:
		e.open = append(e.open, trade.Clone())
	}

	e.dirty = true
}

// AddTrades records every trade of trades.
func (e *Evaluator) AddTrades(trades []*types.Trade) {
	for _, t := range trades {
		e.AddTrade(t)
	}
}

// UpdateEquity marks the open trades at unrealizedPnL. The settled balance
// is not touched.
func (e *Evaluator) UpdateEquity(unrealizedPnL float64) {
	e.unrealized = decimal.NewFromFloat(unrealizedPnL)
	e.dirty = true
}

// State returns a copy of the ledger.
func (e *Evaluator) State() AccountState {
	return e.ledger().clone()
}

// ledger replays the trades once per batch of changes.
func (e *Evaluator) ledger() *AccountState {
	if e.dirty {
		e.state = replay(e.rule.InitialBalance, e.completed, e.open, e.unrealized)
		e.dirty = false
	}

	return &e.state
}

// Evaluate runs every configured rule check. It does not change the ledger, and two
// calls over the same trades produce identical results.
func (e *Evaluator) Evaluate() types.EvaluationResult {
	s := e.ledger()
	violations := make([]types.Violation, 0)

	for _, check := range checks {
		violations = append(violations, check(&e.rule, s)...)
	}

	result := types.EvaluationResult{
		PropFirmName: e.rule.Name,
		Passed:       true,
		Violations:   violations,
		Metrics:      metrics(s),
		StartDate:    startDate(s),
		EndDate:      endDate(s),
	}
	result.Passed = !result.HasErrors()

	return result
}
