package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
	"github.com/shopspring/decimal"
)

// OrderBook indexes the orders of one trade by slot.
type OrderBook struct {
	Entry       *types.Order
	StopLoss    *types.Order
	TakeProfits []*types.Order
}

// EnsureOrders loads the orders of trade and creates every missing slot: one
// entry, one stop-loss when the trade has a stop, and one take-profit per
// target with the trade quantity split evenly. Existing rows are never
// duplicated, so calling it again after a restart is a no-op.
func EnsureOrders(ctx context.Context, store storage.OrderStore, trade *types.Trade, precision int, now time.Time) (*OrderBook, error) {
	existing, err := store.GetOrdersByTradeID(ctx, trade.ID)
	if err != nil {
		return nil, fmt.Errorf("load orders of %s: %w", trade.ID, err)
	}

	bySlot := make(map[string]*types.Order, len(existing))
	for _, o := range existing {
		bySlot[o.Key()] = o
	}

	var missing []*types.Order

	add := func(orderType types.OrderType, tpIndex optional.Option[int], price float64, quantity decimal.Decimal) {
		order := &types.Order{
			ID:          uuid.New().String(),
			TradeID:     trade.ID,
			OrderType:   orderType,
			TPIndex:     tpIndex,
			Price:       price,
			Quantity:    quantity.InexactFloat64(),
			Status:      types.OrderStatusPending,
			FilledAt:    optional.None[time.Time](),
			FilledPrice: optional.None[float64](),
			CreatedAt:   now,
		}
		if _, ok := bySlot[order.Key()]; !ok {
			missing = append(missing, order)
		}
	}

	quantity := decimal.NewFromFloat(trade.Quantity)

	add(types.OrderTypeEntry, optional.None[int](), trade.EntryPrice, quantity)

	if trade.HasStopLoss() {
		add(types.OrderTypeStopLoss, optional.None[int](), trade.StopLoss, quantity)
	}

	legs := utils.SplitEvenly(quantity, len(trade.TakeProfits), precision)
	for i, tp := range trade.TakeProfits {
		add(types.OrderTypeTakeProfit, optional.Some(i), tp, legs[i])
	}

	for _, order := range missing {
		err := store.InsertOrder(ctx, order)
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Another caller created the slot first; the reload below picks it up.
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("insert %s order of %s: %w", order.Key(), trade.ID, err)
		}
	}

	if len(missing) > 0 {
		existing, err = store.GetOrdersByTradeID(ctx, trade.ID)
		if err != nil {
			return nil, fmt.Errorf("reload orders of %s: %w", trade.ID, err)
		}
	}

	return newOrderBook(existing, len(trade.TakeProfits)), nil
}

func newOrderBook(orders []*types.Order, targets int) *OrderBook {
	book := &OrderBook{
		Entry:       nil,
		StopLoss:    nil,
		TakeProfits: make([]*types.Order, targets),
	}

	for _, o := range orders {
		switch o.OrderType {
		case types.OrderTypeEntry:
			book.Entry = o
		case types.OrderTypeStopLoss:
			book.StopLoss = o
		case types.OrderTypeTakeProfit:
			idx := o.TPIndex.TakeOr(-1)
			if idx >= 0 && idx < targets {
				book.TakeProfits[idx] = o
			}
		}
	}

	return book
}

// FilledTakeProfits counts the filled take-profit legs.
func (b *OrderBook) FilledTakeProfits() int {
	n := 0

	for _, tp := range b.TakeProfits {
		if tp != nil && tp.IsFilled() {
			n++
		}
	}

	return n
}

// AllTakeProfitsFilled reports whether every leg has filled. A trade without
// targets never closes through take-profits.
func (b *OrderBook) AllTakeProfitsFilled() bool {
	return len(b.TakeProfits) > 0 && b.FilledTakeProfits() == len(b.TakeProfits)
}
