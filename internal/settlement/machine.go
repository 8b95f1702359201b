package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Machine drives one trade through pending -> active -> closed|stopped|cancelled.
// Every transition is persisted before the next observation is considered.
// A failed write leaves the machine stale: Step refuses to run until Reload
// has rebuilt the state from the store. A Machine is owned by a single goroutine.
type Machine struct {
	cfg   config
	store Store
	trade *types.Trade
	book  *OrderBook
	log   *zap.Logger

	loaded bool
	stale  bool
	dir    types.Direction

	// position is the size the entry filled with, remaining what is still open.
	position  decimal.Decimal
	remaining decimal.Decimal
	totalPnL  decimal.Decimal
	entryFill decimal.Decimal

	// Observations before resumeAfter were already applied by an earlier run.
	resumeAfter time.Time

	armed     bool
	bestPrice float64
	bestAt    time.Time
}

// NewMachine creates a machine over trade. The machine owns trade from now on.
// Load must be called before Step.
func NewMachine(trade *types.Trade, store Store, opts ...Option) *Machine {
	cfg := newConfig(opts)

	return &Machine{
		cfg:         cfg,
		store:       store,
		trade:       trade,
		book:        nil,
		log:         cfg.logger.With(zap.String("trade_id", trade.ID), zap.String("pair", trade.TradingPair)),
		loaded:      false,
		stale:       false,
		dir:         trade.Direction(),
		position:    decimal.Zero,
		remaining:   decimal.Zero,
		totalPnL:    decimal.Zero,
		entryFill:   decimal.Zero,
		resumeAfter: time.Time{},
		armed:       false,
		bestPrice:   0,
		bestAt:      time.Time{},
	}
}

// Load creates the missing order rows and rebuilds the remaining quantity and
// realized PnL from the filled orders. Calling it again yields the same state.
func (m *Machine) Load(ctx context.Context) error {
	m.armed = false
	m.dir = m.trade.Direction()

	if m.trade.Status.IsTerminal() {
		m.loaded = true

		return nil
	}

	if m.trade.Quantity <= 0 {
		m.log.Error("trade has no quantity, legs will settle with zero size",
			zap.Float64("quantity", m.trade.Quantity),
			zap.Int("code", int(errors.ErrCodeMissingQuantity)),
		)
	}

	book, err := EnsureOrders(ctx, m.store, m.trade, m.cfg.quantityPrecision, m.cfg.now())
	if err != nil {
		m.stale = true

		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to ensure orders", err)
	}

	m.book = book
	m.rebuild()
	m.loaded = true

	return m.repair(ctx)
}

// Inspect rebuilds the settlement state of trade from its stored orders
// without writing anything: no missing order is created and no partial
// transition is finished. The machine works on a copy of trade, is meant for
// reads such as UnrealizedPnL and refuses to Step.
func Inspect(ctx context.Context, trade *types.Trade, store Store, opts ...Option) (*Machine, error) {
	m := NewMachine(trade.Clone(), store, opts...)

	orders, err := store.GetOrdersByTradeID(ctx, trade.ID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to load orders of %s", trade.ID)
	}

	m.book = newOrderBook(orders, len(m.trade.TakeProfits))
	m.rebuild()

	return m, nil
}

// Reload discards the in-memory state, reads the trade back from the store
// and loads it again. It is how a caller recovers after a failed write; the
// observation that failed is not replayed.
func (m *Machine) Reload(ctx context.Context) error {
	trade, err := m.store.GetTrade(ctx, m.trade.ID)
	if err != nil {
		m.stale = true

		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to reload trade %s", m.trade.ID)
	}

	m.trade = trade
	m.book = nil
	m.loaded = false
	m.stale = false

	return m.Load(ctx)
}

// Stale reports whether a write failed since the last Load.
func (m *Machine) Stale() bool {
	return m.stale
}

func (m *Machine) rebuild() {
	m.position = dec(m.trade.Quantity)
	m.totalPnL = decimal.Zero
	m.entryFill = dec(m.trade.EntryPrice)
	m.resumeAfter = time.Time{}

	entry := m.book.Entry
	switch {
	case entry != nil && entry.IsFilled():
		m.entryFill = dec(entry.FilledPrice.TakeOr(m.trade.EntryPrice))
		// The entry row carries the requantized size even if the trade row was not updated yet.
		m.position = dec(entry.Quantity)
		m.resumeAfter = entry.FilledAt.TakeOr(m.trade.CreatedAt)
	case m.trade.Status == types.TradeStatusActive:
		m.log.Warn("active trade without a filled entry order, using the requested entry")
		m.resumeAfter = m.trade.EntryFilledAt.TakeOr(m.trade.CreatedAt)
	}

	m.remaining = m.position

	for _, tp := range m.book.TakeProfits {
		if tp == nil || !tp.IsFilled() {
			continue
		}

		qty := dec(tp.Quantity)
		m.remaining = m.remaining.Sub(qty)
		m.totalPnL = m.totalPnL.Add(m.legPnL(dec(tp.FilledPrice.TakeOr(tp.Price)), qty))

		if at := tp.FilledAt.TakeOr(time.Time{}); at.After(m.resumeAfter) {
			m.resumeAfter = at
		}
	}

	m.clampRemaining("rebuild")
}

// repair finishes transitions an interrupted run persisted only partially.
func (m *Machine) repair(ctx context.Context) error {
	entry := m.book.Entry
	if m.trade.Status == types.TradeStatusPending && entry != nil && entry.IsFilled() {
		m.trade.Status = types.TradeStatusActive
		m.trade.EntryFilledAt = entry.FilledAt
		m.trade.Quantity = entry.Quantity

		if err := m.updateTrade(ctx); err != nil {
			return err
		}
	}

	if m.trade.Status != types.TradeStatusActive {
		return nil
	}

	if m.trade.Quantity != m.position.InexactFloat64() {
		m.trade.Quantity = m.position.InexactFloat64()
		if err := m.updateTrade(ctx); err != nil {
			return err
		}
	}

	if sl := m.book.StopLoss; sl != nil && sl.IsFilled() {
		return m.settleStop(ctx, sl.FilledPrice.TakeOr(sl.Price), sl.FilledAt.TakeOr(m.resumeAfter))
	}

	if m.book.AllTakeProfitsFilled() {
		return m.close(ctx, m.resumeAfter)
	}

	return m.applyBreakeven(ctx, m.resumeAfter)
}

// Step applies one price observation. It returns true once the trade is terminal.
func (m *Machine) Step(ctx context.Context, point types.PricePoint) (bool, error) {
	if m.stale {
		return false, errors.New(errors.ErrCodeMachineStale, "settlement machine must be reloaded after a failed write")
	}

	if !m.loaded {
		return false, errors.New(errors.ErrCodeEngineNotInitialized, "settlement machine is not loaded")
	}

	if m.trade.Status.IsTerminal() {
		return true, nil
	}

	if point.Timestamp.Before(m.resumeAfter) || point.Price <= 0 {
		return false, nil
	}

	if m.trade.Status == types.TradeStatusPending {
		filled, err := m.stepEntry(ctx, point)
		if err != nil {
			return false, err
		}

		if m.trade.Status.IsTerminal() {
			return true, nil
		}

		if !filled {
			return false, nil
		}
	}

	return m.stepExits(ctx, point)
}

// stepEntry tracks the entry band. While price stays inside the band the most
// favorable price is remembered; the entry fills at that price once price
// leaves the band again.
func (m *Machine) stepEntry(ctx context.Context, point types.PricePoint) (bool, error) {
	if m.trade.ExpiresAt.IsSome() && point.Timestamp.After(m.trade.ExpiresAt.Unwrap()) {
		if m.armed {
			return true, m.fillEntry(ctx, m.bestPrice, m.bestAt)
		}

		return false, m.Cancel(ctx, point.Timestamp, "expired")
	}

	if utils.WithinBand(point.Price, m.trade.EntryPrice, m.cfg.entryTolerancePct) {
		if !m.armed || m.dir.Better(point.Price, m.bestPrice) {
			m.bestPrice = point.Price
			m.bestAt = point.Timestamp
		}

		m.armed = true

		return false, nil
	}

	if !m.armed {
		return false, nil
	}

	return true, m.fillEntry(ctx, m.bestPrice, m.bestAt)
}

// stepExits checks the stop first; a stop-out ends processing of the observation.
func (m *Machine) stepExits(ctx context.Context, point types.PricePoint) (bool, error) {
	if m.trade.HasStopLoss() && m.dir.StopHit(point.Price, m.trade.StopLoss) {
		return true, m.settleStop(ctx, point.Price, point.Timestamp)
	}

	for i, target := range m.trade.TakeProfits {
		order := m.book.TakeProfits[i]
		if order == nil || order.IsFilled() || !m.dir.Reached(point.Price, target) {
			continue
		}

		if err := m.fillTakeProfit(ctx, i, point.Timestamp); err != nil {
			return false, err
		}

		if err := m.applyBreakeven(ctx, point.Timestamp); err != nil {
			return false, err
		}
	}

	if m.book.AllTakeProfitsFilled() {
		return true, m.close(ctx, point.Timestamp)
	}

	return false, nil
}

// FlushEntry fills an armed entry at the best tracked price. It is called when
// the price window ends while price is still inside the band.
func (m *Machine) FlushEntry(ctx context.Context) (bool, error) {
	if m.stale {
		return false, errors.New(errors.ErrCodeMachineStale, "settlement machine must be reloaded after a failed write")
	}

	if m.trade.Status != types.TradeStatusPending || !m.armed {
		return false, nil
	}

	return true, m.fillEntry(ctx, m.bestPrice, m.bestAt)
}

func (m *Machine) fillEntry(ctx context.Context, price float64, at time.Time) error {
	fill := dec(price)
	requested := dec(m.trade.EntryPrice)
	position := dec(m.trade.Quantity)

	if !fill.Equal(requested) && position.IsPositive() {
		// Keep the notional of the signal constant at the actual fill price.
		position = position.Mul(requested).Div(fill).Truncate(int32(m.cfg.quantityPrecision))
		legs := utils.SplitEvenly(position, len(m.book.TakeProfits), m.cfg.quantityPrecision)

		for i, tp := range m.book.TakeProfits {
			if tp == nil || tp.IsFilled() {
				continue
			}

			tp.Quantity = legs[i].InexactFloat64()
			if err := m.updateOrder(ctx, tp); err != nil {
				return err
			}
		}

		if sl := m.book.StopLoss; sl != nil {
			sl.Quantity = position.InexactFloat64()
			if err := m.updateOrder(ctx, sl); err != nil {
				return err
			}
		}
	}

	if entry := m.book.Entry; entry != nil {
		entry.Status = types.OrderStatusFilled
		entry.FilledAt = optional.Some(at)
		entry.FilledPrice = optional.Some(price)
		entry.Quantity = position.InexactFloat64()

		if err := m.updateOrder(ctx, entry); err != nil {
			return err
		}
	}

	m.trade.Status = types.TradeStatusActive
	m.trade.EntryFilledAt = optional.Some(at)
	m.trade.Quantity = position.InexactFloat64()

	if err := m.updateTrade(ctx); err != nil {
		return err
	}

	m.entryFill = fill
	m.position = position
	m.remaining = position
	m.resumeAfter = at
	m.armed = false

	m.log.Debug("entry filled",
		zap.Float64("requested", m.trade.EntryPrice),
		zap.Float64("fill", price),
		zap.Float64("quantity", m.trade.Quantity),
	)
	m.emit(Event{ //nolint:exhaustruct
		Type:     EventEntryFilled,
		At:       at,
		Price:    price,
		Quantity: m.trade.Quantity,
		TPIndex:  optional.None[int](),
	})

	return nil
}

func (m *Machine) fillTakeProfit(ctx context.Context, index int, at time.Time) error {
	order := m.book.TakeProfits[index]
	target := m.trade.TakeProfits[index]

	qty := dec(order.Quantity)
	if !qty.IsPositive() {
		qty = utils.SplitEvenly(m.position, len(m.book.TakeProfits), m.cfg.quantityPrecision)[index]
	}

	if qty.GreaterThan(m.remaining) {
		m.log.Error("take profit leg exceeds remaining quantity, clamping",
			zap.Int("tp_index", index),
			zap.String("leg_quantity", qty.String()),
			zap.String("remaining", m.remaining.String()),
			zap.Int("code", int(errors.ErrCodeNegativeQuantity)),
		)

		qty = m.remaining
	}

	pnl := m.legPnL(dec(target), qty)

	order.Status = types.OrderStatusFilled
	order.FilledAt = optional.Some(at)
	order.FilledPrice = optional.Some(target)
	order.Quantity = qty.InexactFloat64()

	if err := m.updateOrder(ctx, order); err != nil {
		return err
	}

	m.remaining = m.remaining.Sub(qty)
	m.clampRemaining("take_profit")
	m.totalPnL = m.totalPnL.Add(pnl)
	m.resumeAfter = at

	m.log.Debug("take profit filled",
		zap.Int("tp_index", index),
		zap.Float64("price", target),
		zap.String("quantity", qty.String()),
		zap.String("pnl", pnl.String()),
	)
	m.emit(Event{ //nolint:exhaustruct
		Type:     EventTakeProfitFilled,
		At:       at,
		Price:    target,
		Quantity: qty.InexactFloat64(),
		PnL:      pnl.InexactFloat64(),
		TPIndex:  optional.Some(index),
	})

	return nil
}

// applyBreakeven moves the stop to the entry fill once enough legs have filled.
// It only ever fires once per trade.
func (m *Machine) applyBreakeven(ctx context.Context, at time.Time) error {
	n := m.cfg.breakevenAfterTPs
	if n == 0 || m.trade.StopLossBreakeven || m.book.FilledTakeProfits() < n {
		return nil
	}

	price := m.entryFill.InexactFloat64()

	if sl := m.book.StopLoss; sl != nil {
		sl.Price = price
		if err := m.updateOrder(ctx, sl); err != nil {
			return err
		}
	} else {
		sl := &types.Order{
			ID:          uuid.New().String(),
			TradeID:     m.trade.ID,
			OrderType:   types.OrderTypeStopLoss,
			TPIndex:     optional.None[int](),
			Price:       price,
			Quantity:    m.remaining.InexactFloat64(),
			Status:      types.OrderStatusPending,
			FilledAt:    optional.None[time.Time](),
			FilledPrice: optional.None[float64](),
			CreatedAt:   at,
		}
		if err := m.store.InsertOrder(ctx, sl); err != nil {
			m.stale = true

			return errors.Wrap(errors.ErrCodeStorageFailed, "failed to insert breakeven stop order", err)
		}

		m.book.StopLoss = sl
	}

	m.trade.StopLoss = price
	m.trade.StopLossBreakeven = true

	if err := m.updateTrade(ctx); err != nil {
		return err
	}

	m.log.Debug("stop moved to breakeven", zap.Float64("stop_loss", price))
	m.emit(Event{ //nolint:exhaustruct
		Type:    EventBreakevenApplied,
		At:      at,
		Price:   price,
		TPIndex: optional.None[int](),
	})

	return nil
}

// settleStop closes the remaining quantity at the stop-out price. A breakeven
// stop books exactly zero for this leg.
func (m *Machine) settleStop(ctx context.Context, price float64, at time.Time) error {
	qty := m.remaining
	pnl := decimal.Zero

	if !m.trade.StopLossBreakeven && !dec(m.trade.StopLoss).Equal(m.entryFill) {
		pnl = m.legPnL(dec(price), qty)
	}

	if sl := m.book.StopLoss; sl != nil {
		sl.Status = types.OrderStatusFilled
		sl.FilledAt = optional.Some(at)
		sl.FilledPrice = optional.Some(price)
		sl.Quantity = qty.InexactFloat64()

		if err := m.updateOrder(ctx, sl); err != nil {
			return err
		}
	}

	m.remaining = decimal.Zero
	m.totalPnL = m.totalPnL.Add(pnl)

	m.trade.Status = types.TradeStatusStopped
	m.trade.ExitFilledAt = optional.Some(at)
	m.trade.ExitPrice = optional.Some(price)
	m.settlePnL()

	if err := m.updateTrade(ctx); err != nil {
		return err
	}

	m.log.Debug("stop loss filled",
		zap.Float64("price", price),
		zap.String("quantity", qty.String()),
		zap.String("pnl", pnl.String()),
		zap.Bool("breakeven", m.trade.StopLossBreakeven),
	)
	m.emit(Event{ //nolint:exhaustruct
		Type:     EventStopLossFilled,
		At:       at,
		Price:    price,
		Quantity: qty.InexactFloat64(),
		PnL:      pnl.InexactFloat64(),
		TPIndex:  optional.None[int](),
	})

	return nil
}

// close settles a trade whose every take-profit leg has filled.
func (m *Machine) close(ctx context.Context, at time.Time) error {
	if !m.remaining.IsZero() {
		m.log.Error("take profit legs do not cover the position, dropping the remainder",
			zap.String("remaining", m.remaining.String()),
			zap.Int("code", int(errors.ErrCodeNegativeQuantity)),
		)

		m.remaining = decimal.Zero
	}

	exit := m.trade.TakeProfits[len(m.trade.TakeProfits)-1]

	m.trade.Status = types.TradeStatusClosed
	m.trade.ExitFilledAt = optional.Some(at)
	m.trade.ExitPrice = optional.Some(exit)
	m.settlePnL()

	if err := m.updateTrade(ctx); err != nil {
		return err
	}

	m.log.Debug("trade closed", zap.String("pnl", m.totalPnL.String()))
	m.emit(Event{ //nolint:exhaustruct
		Type:    EventClosed,
		At:      at,
		Price:   exit,
		PnL:     m.totalPnL.InexactFloat64(),
		TPIndex: optional.None[int](),
	})

	return nil
}

// Cancel moves a pending trade to cancelled. Other statuses are left alone.
func (m *Machine) Cancel(ctx context.Context, at time.Time, reason string) error {
	if m.stale {
		return errors.New(errors.ErrCodeMachineStale, "settlement machine must be reloaded after a failed write")
	}

	if m.trade.Status != types.TradeStatusPending {
		return nil
	}

	m.trade.Status = types.TradeStatusCancelled
	m.armed = false

	if err := m.updateTrade(ctx); err != nil {
		return err
	}

	m.log.Info("trade cancelled", zap.String("reason", reason))
	m.emit(Event{ //nolint:exhaustruct
		Type:    EventCancelled,
		At:      at,
		TPIndex: optional.None[int](),
		Reason:  reason,
	})

	return nil
}

// legPnL is sign * (price - entry fill) * quantity * leverage.
func (m *Machine) legPnL(price, qty decimal.Decimal) decimal.Decimal {
	return price.Sub(m.entryFill).
		Mul(qty).
		Mul(dec(m.trade.EffectiveLeverage())).
		Mul(dec(m.dir.Sign()))
}

// settlePnL writes the realized PnL and its percentage of the margin used.
func (m *Machine) settlePnL() {
	m.trade.PnL = optional.Some(m.totalPnL.InexactFloat64())

	// Leverage is already inside the PnL, so the margin is the unlevered notional.
	margin := m.entryFill.Mul(m.position)
	if !margin.IsPositive() {
		m.log.Error("cannot compute pnl percentage from non-positive margin",
			zap.String("entry_fill", m.entryFill.String()),
			zap.String("position", m.position.String()),
			zap.Int("code", int(errors.ErrCodeInvalidPnLInput)),
		)
		m.trade.PnLPercentage = optional.Some(0.0)

		return
	}

	m.trade.PnLPercentage = optional.Some(m.totalPnL.Div(margin).Mul(decimal.NewFromInt(100)).InexactFloat64())
}

func (m *Machine) clampRemaining(stage string) {
	if !m.remaining.IsNegative() {
		return
	}

	m.log.Error("remaining quantity went negative, clamping to zero",
		zap.String("stage", stage),
		zap.String("remaining", m.remaining.String()),
		zap.Int("code", int(errors.ErrCodeNegativeQuantity)),
	)

	m.remaining = decimal.Zero
}

func (m *Machine) updateTrade(ctx context.Context) error {
	if err := m.store.UpdateTrade(ctx, m.trade); err != nil {
		m.stale = true

		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to update trade %s", m.trade.ID)
	}

	return nil
}

func (m *Machine) updateOrder(ctx context.Context, order *types.Order) error {
	if err := m.store.UpdateOrder(ctx, order); err != nil {
		m.stale = true

		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to update %s order of %s", order.Key(), m.trade.ID)
	}

	return nil
}

func (m *Machine) emit(event Event) {
	if m.cfg.onEvent == nil {
		return
	}

	event.TradeID = m.trade.ID
	m.cfg.onEvent(event)
}

// Trade returns a copy of the trade in its current state.
func (m *Machine) Trade() *types.Trade {
	return m.trade.Clone()
}

// Status is the current trade status.
func (m *Machine) Status() types.TradeStatus {
	return m.trade.Status
}

// Armed reports whether price is inside the entry band of a pending trade.
func (m *Machine) Armed() bool {
	return m.armed
}

// RemainingQuantity is the open size not yet settled by a leg.
func (m *Machine) RemainingQuantity() float64 {
	return m.remaining.InexactFloat64()
}

// TotalPnL is the realized PnL of the legs settled so far.
func (m *Machine) TotalPnL() float64 {
	return m.totalPnL.InexactFloat64()
}

// Position is the size the entry filled with, or the requested size before the fill.
func (m *Machine) Position() float64 {
	return m.position.InexactFloat64()
}

// FilledQuantity sums the quantities of every filled exit leg.
func (m *Machine) FilledQuantity() float64 {
	if m.book == nil {
		return 0
	}

	total := decimal.Zero

	for _, tp := range m.book.TakeProfits {
		if tp != nil && tp.IsFilled() {
			total = total.Add(dec(tp.Quantity))
		}
	}

	if sl := m.book.StopLoss; sl != nil && sl.IsFilled() {
		total = total.Add(dec(sl.Quantity))
	}

	return total.InexactFloat64()
}

// UnrealizedPnL marks the remaining size of an active trade at price.
// Pending and terminal trades have none.
func (m *Machine) UnrealizedPnL(price float64) float64 {
	if m.trade.Status != types.TradeStatusActive || price <= 0 {
		return 0
	}

	return m.legPnL(dec(price), m.remaining).InexactFloat64()
}

// Orders returns the order book of the trade. Nil before Load.
func (m *Machine) Orders() *OrderBook {
	return m.book
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
