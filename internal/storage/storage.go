// Package storage defines the persistence contracts for trades, orders and
// evaluation results. Every backend is safe for concurrent per-trade callers.
package storage

import (
	"context"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// TradeStore provides access to trades storage.
type TradeStore interface {
	// InsertTrade adds a new trade. Returns ErrDuplicateKey if the id exists.
	InsertTrade(ctx context.Context, trade *types.Trade) error

	// UpdateTrade overwrites the mutable fields of a trade. Returns ErrNotFound if missing.
	UpdateTrade(ctx context.Context, trade *types.Trade) error

	// GetTrade retrieves a trade by id. Returns ErrNotFound if missing.
	GetTrade(ctx context.Context, id string) (*types.Trade, error)

	// GetTradesByStatus retrieves trades of channel in any of statuses, ordered by created_at ASC.
	// An empty channel matches every channel.
	GetTradesByStatus(ctx context.Context, channel string, statuses ...types.TradeStatus) ([]*types.Trade, error)

	// GetActiveTrades retrieves pending and active trades of channel.
	GetActiveTrades(ctx context.Context, channel string) ([]*types.Trade, error)

	// GetClosedTrades retrieves closed and stopped trades of channel.
	GetClosedTrades(ctx context.Context, channel string) ([]*types.Trade, error)
}

// OrderStore provides access to orders storage.
type OrderStore interface {
	// InsertOrder adds a new order. Returns ErrDuplicateKey if the trade already
	// has an order in the same slot (entry, stop_loss or take_profit index).
	InsertOrder(ctx context.Context, order *types.Order) error

	// UpdateOrder overwrites the mutable fields of an order. Returns ErrNotFound if missing.
	UpdateOrder(ctx context.Context, order *types.Order) error

	// GetOrdersByTradeID retrieves all orders of a trade, ordered by slot.
	GetOrdersByTradeID(ctx context.Context, tradeID string) ([]*types.Order, error)
}

// EvaluationStore provides access to evaluation_results storage.
type EvaluationStore interface {
	// InsertEvaluation appends an evaluation result. Returns ErrDuplicateKey if the id exists.
	InsertEvaluation(ctx context.Context, record *types.EvaluationRecord) error

	// GetEvaluations retrieves the evaluations of channel, ordered by created_at ASC.
	GetEvaluations(ctx context.Context, channel string) ([]*types.EvaluationRecord, error)
}

// Store aggregates every table of one backend.
type Store interface {
	TradeStore
	OrderStore
	EvaluationStore

	// Migrate creates the schema. It is idempotent.
	Migrate(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// ActiveStatuses are the statuses a settlement run still has to drive.
var ActiveStatuses = []types.TradeStatus{types.TradeStatusPending, types.TradeStatusActive}

// ClosedStatuses are the statuses that carry a realized PnL.
var ClosedStatuses = []types.TradeStatus{types.TradeStatusClosed, types.TradeStatusStopped}
