package storage

import (
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// ToPtr converts an option to a nullable pointer for drivers.
func ToPtr[T any](o optional.Option[T]) *T {
	if o.IsNone() {
		return nil
	}

	v := o.Unwrap()

	return &v
}

// FromPtr converts a nullable pointer read from a driver to an option.
func FromPtr[T any](p *T) optional.Option[T] {
	if p == nil {
		return optional.None[T]()
	}

	return optional.Some(*p)
}

// HasStatus reports whether status is one of statuses. No statuses matches everything.
func HasStatus(status types.TradeStatus, statuses []types.TradeStatus) bool {
	if len(statuses) == 0 {
		return true
	}

	for _, s := range statuses {
		if s == status {
			return true
		}
	}

	return false
}

// StatusStrings converts statuses for SQL IN clauses.
func StatusStrings(statuses []types.TradeStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}

	return out
}

// SortTrades orders trades by created_at, then id.
func SortTrades(trades []*types.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].CreatedAt.Equal(trades[j].CreatedAt) {
			return trades[i].CreatedAt.Before(trades[j].CreatedAt)
		}

		return trades[i].ID < trades[j].ID
	})
}

// SortOrders orders the orders of one trade: entry, stop_loss, then take-profits by index.
func SortOrders(orders []*types.Order) {
	rank := func(o *types.Order) int {
		switch o.OrderType {
		case types.OrderTypeEntry:
			return -2
		case types.OrderTypeStopLoss:
			return -1
		default:
			return o.TPIndex.TakeOr(0)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return rank(orders[i]) < rank(orders[j])
	})
}

// ValidateTrade rejects records that cannot be stored.
func ValidateTrade(trade *types.Trade) error {
	if trade == nil || trade.ID == "" {
		return ErrInvalidInput
	}

	return nil
}

// ValidateOrder rejects records that cannot be stored.
func ValidateOrder(order *types.Order) error {
	if order == nil || order.ID == "" || order.TradeID == "" {
		return ErrInvalidInput
	}

	if order.OrderType == types.OrderTypeTakeProfit && order.TPIndex.IsNone() {
		return ErrInvalidInput
	}

	return nil
}
