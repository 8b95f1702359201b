package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

type TradeStatus string

type Direction string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusActive    TradeStatus = "active"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusStopped   TradeStatus = "stopped"
	TradeStatusCancelled TradeStatus = "cancelled"
)

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// IsTerminal reports whether the status can never change again.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusClosed || s == TradeStatusStopped || s == TradeStatusCancelled
}

// IsCompleted reports whether the trade was settled with a PnL.
func (s TradeStatus) IsCompleted() bool {
	return s == TradeStatusClosed || s == TradeStatusStopped
}

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}

	return 1
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionShort {
		return DirectionLong
	}

	return DirectionShort
}

// Reached reports whether price has touched a profit target.
// Long targets sit above the entry, short targets below it.
func (d Direction) Reached(price, target float64) bool {
	if d == DirectionShort {
		return price <= target
	}

	return price >= target
}

// StopHit reports whether price has touched a stop level.
func (d Direction) StopHit(price, stop float64) bool {
	if d == DirectionShort {
		return price >= stop
	}

	return price <= stop
}

// Better reports whether candidate is a more favorable entry than current.
// A long position prefers the lower price, a short position the higher one.
func (d Direction) Better(candidate, current float64) bool {
	if d == DirectionShort {
		return candidate > current
	}

	return candidate < current
}

// Trade is one position opened from a parsed signal.
type Trade struct {
	ID          string `json:"id" validate:"required"`
	Channel     string `json:"channel" validate:"required"`
	TradingPair string `json:"trading_pair" validate:"required"`
	// EntryPrice is the requested entry. The actual fill price lives on the entry order.
	EntryPrice float64 `json:"entry_price" validate:"gt=0"`
	// StopLoss is the current stop level. Zero means no stop-loss was given.
	StopLoss float64 `json:"stop_loss" validate:"gte=0"`
	// TakeProfits are the ordered target prices. Never modified after creation.
	TakeProfits    []float64 `json:"take_profits" validate:"dive,gt=0"`
	Quantity       float64   `json:"quantity" validate:"gte=0"`
	Leverage       float64   `json:"leverage" validate:"gte=0"`
	RiskPercentage float64   `json:"risk_percentage" validate:"gte=0,lte=100"`

	Status            TradeStatus                `json:"status" validate:"required,oneof=pending active closed stopped cancelled"`
	CreatedAt         time.Time                  `json:"created_at" validate:"required"`
	EntryFilledAt     optional.Option[time.Time] `json:"entry_filled_at"`
	ExitFilledAt      optional.Option[time.Time] `json:"exit_filled_at"`
	ExitPrice         optional.Option[float64]   `json:"exit_price"`
	PnL               optional.Option[float64]   `json:"pnl"`
	PnLPercentage     optional.Option[float64]   `json:"pnl_percentage"`
	StopLossBreakeven bool                       `json:"stop_loss_breakeven"`
	ExpiresAt         optional.Option[time.Time] `json:"expires_at"`
}

// Direction derives the side from the stop-loss placement. When the stop is
// missing, or has been moved to breakeven, the first take-profit decides, and
// a bare entry defaults to long.
func (t *Trade) Direction() Direction {
	if t.HasStopLoss() && !t.StopLossBreakeven {
		if t.EntryPrice > t.StopLoss {
			return DirectionLong
		}

		return DirectionShort
	}

	if len(t.TakeProfits) > 0 && t.TakeProfits[0] < t.EntryPrice {
		return DirectionShort
	}

	return DirectionLong
}

// HasStopLoss reports whether a stop level is set.
func (t *Trade) HasStopLoss() bool {
	return t.StopLoss > 0
}

// EffectiveLeverage treats an unset leverage as 1x.
func (t *Trade) EffectiveLeverage() float64 {
	if t.Leverage <= 0 {
		return 1
	}

	return t.Leverage
}

// HoldingDuration is the time between entry fill and exit fill.
// It is None while either side is missing.
func (t *Trade) HoldingDuration() optional.Option[time.Duration] {
	if t.EntryFilledAt.IsNone() || t.ExitFilledAt.IsNone() {
		return optional.None[time.Duration]()
	}

	return optional.Some(t.ExitFilledAt.Unwrap().Sub(t.EntryFilledAt.Unwrap()))
}

// Clone returns a deep copy so stores never share slices with callers.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.TakeProfits != nil {
		c.TakeProfits = append([]float64(nil), t.TakeProfits...)
	}

	return &c
}

// Validate validates the Trade struct.
func (t *Trade) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidTrade, "invalid trade", err)
	}

	return nil
}
