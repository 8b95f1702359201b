package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// Engine replays the price history of one trade through a Machine.
type Engine struct {
	machine  *Machine
	provider marketdata.PriceSeriesProvider
	cfg      config

	initialized bool
	source      *SeriesSource
	windowEnd   time.Time
	// windowComplete is true when the window covers the whole max duration,
	// i.e. it was not cut short by the current time.
	windowComplete bool
}

// NewEngine creates a replay engine for trade.
func NewEngine(trade *types.Trade, provider marketdata.PriceSeriesProvider, store Store, opts ...Option) *Engine {
	cfg := newConfig(opts)

	return &Engine{
		machine:        NewMachine(trade, store, opts...),
		provider:       provider,
		cfg:            cfg,
		initialized:    false,
		source:         nil,
		windowEnd:      time.Time{},
		windowComplete: false,
	}
}

// Initialize loads and repairs the durable state of the trade, then fetches
// the price window [created_at, min(created_at+maxDurationDays, now)].
// Fetch errors are returned unchanged so the caller can decide to retry.
func (e *Engine) Initialize(ctx context.Context, maxDurationDays int) error {
	if maxDurationDays <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "max duration must be positive, got %d days", maxDurationDays)
	}

	if err := e.machine.Load(ctx); err != nil {
		return err
	}

	trade := e.machine.trade
	if trade.Status.IsTerminal() {
		e.source = NewSeriesSource(nil)
		e.initialized = true

		return nil
	}

	from := trade.CreatedAt
	limit := from.Add(time.Duration(maxDurationDays) * 24 * time.Hour)
	now := e.cfg.now()

	to := limit
	if now.Before(limit) {
		to = now
	}

	points, err := e.provider.GetPriceHistory(ctx, trade.TradingPair, from, to)
	if err != nil {
		return fmt.Errorf("fetch price history of %s for trade %s: %w", trade.TradingPair, trade.ID, err)
	}

	points = marketdata.Normalize(points, from, to)

	e.source = NewSeriesSource(points)
	e.windowEnd = to
	e.windowComplete = !limit.After(now)
	e.initialized = true

	e.machine.log.Debug("price window loaded",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("points", len(points)),
		zap.Bool("complete", e.windowComplete),
	)

	return nil
}

// Process replays the fetched window. It returns true once the trade is
// terminal and false if the window ended with the trade still open.
func (e *Engine) Process(ctx context.Context) (bool, error) {
	if !e.initialized {
		return false, errors.New(errors.ErrCodeEngineNotInitialized, "engine is not initialized")
	}

	m := e.machine
	if m.Status().IsTerminal() {
		return true, nil
	}

	if e.source.Len() == 0 && m.Status() == types.TradeStatusPending {
		return true, m.Cancel(ctx, e.windowEnd, "no price data")
	}

	for {
		point, ok, err := e.source.Next(ctx)
		if err != nil {
			return false, err
		}

		if !ok {
			break
		}

		done, err := m.Step(ctx, point)
		if err != nil {
			return false, err
		}

		if done {
			return true, nil
		}
	}

	return e.finishWindow(ctx)
}

// finishWindow settles a pending trade once the series is exhausted.
func (e *Engine) finishWindow(ctx context.Context) (bool, error) {
	m := e.machine
	if m.Status() != types.TradeStatusPending {
		return false, nil
	}

	filled, err := m.FlushEntry(ctx)
	if err != nil || filled {
		return false, err
	}

	trade := m.trade
	expired := trade.ExpiresAt.IsSome() && !trade.ExpiresAt.Unwrap().After(e.windowEnd)

	if expired || e.windowComplete {
		return true, m.Cancel(ctx, e.windowEnd, "entry not filled within the price window")
	}

	return false, nil
}

// Trade returns a copy of the trade in its current state.
func (e *Engine) Trade() *types.Trade {
	return e.machine.Trade()
}

// RemainingQuantity is the open size not yet settled by a leg.
func (e *Engine) RemainingQuantity() float64 {
	return e.machine.RemainingQuantity()
}

// TotalPnL is the realized PnL of the legs settled so far.
func (e *Engine) TotalPnL() float64 {
	return e.machine.TotalPnL()
}

// Machine exposes the underlying state machine.
func (e *Engine) Machine() *Machine {
	return e.machine
}
