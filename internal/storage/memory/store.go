// Package memory provides in-memory implementations of the storage interfaces
// for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Store is an in-memory implementation of storage.Store.
// Records are copied on the way in and out so callers never share state with it.
type Store struct {
	mu          sync.RWMutex
	trades      map[string]*types.Trade
	orders      map[string]*types.Order // keyed by order id
	slots       map[string]string       // trade_id + slot -> order id
	evaluations map[string]*types.EvaluationRecord
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		mu:          sync.RWMutex{},
		trades:      make(map[string]*types.Trade),
		orders:      make(map[string]*types.Order),
		slots:       make(map[string]string),
		evaluations: make(map[string]*types.EvaluationRecord),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// InsertTrade adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *Store) InsertTrade(_ context.Context, trade *types.Trade) error {
	if err := storage.ValidateTrade(trade); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[trade.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.trades[trade.ID] = trade.Clone()

	return nil
}

// UpdateTrade replaces a stored trade. Returns ErrNotFound if missing.
func (s *Store) UpdateTrade(_ context.Context, trade *types.Trade) error {
	if err := storage.ValidateTrade(trade); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[trade.ID]; !exists {
		return storage.ErrNotFound
	}

	s.trades[trade.ID] = trade.Clone()

	return nil
}

// GetTrade retrieves a trade by id.
func (s *Store) GetTrade(_ context.Context, id string) (*types.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, ok := s.trades[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return trade.Clone(), nil
}

// GetTradesByStatus retrieves trades of channel in any of statuses.
func (s *Store) GetTradesByStatus(_ context.Context, channel string, statuses ...types.TradeStatus) ([]*types.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Trade

	for _, trade := range s.trades {
		if channel != "" && trade.Channel != channel {
			continue
		}

		if !storage.HasStatus(trade.Status, statuses) {
			continue
		}

		result = append(result, trade.Clone())
	}

	storage.SortTrades(result)

	return result, nil
}

// GetActiveTrades retrieves pending and active trades of channel.
func (s *Store) GetActiveTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ActiveStatuses...)
}

// GetClosedTrades retrieves closed and stopped trades of channel.
func (s *Store) GetClosedTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ClosedStatuses...)
}

// InsertOrder adds a new order. Returns ErrDuplicateKey if the slot is taken.
func (s *Store) InsertOrder(_ context.Context, order *types.Order) error {
	if err := storage.ValidateOrder(order); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := order.TradeID + "/" + order.Key()
	if _, exists := s.orders[order.ID]; exists {
		return storage.ErrDuplicateKey
	}

	if _, exists := s.slots[slot]; exists {
		return storage.ErrDuplicateKey
	}

	s.orders[order.ID] = order.Clone()
	s.slots[slot] = order.ID

	return nil
}

// UpdateOrder replaces a stored order. Returns ErrNotFound if missing.
func (s *Store) UpdateOrder(_ context.Context, order *types.Order) error {
	if err := storage.ValidateOrder(order); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.ID]
	if !ok {
		return storage.ErrNotFound
	}

	// The slot of an order never moves.
	updated := order.Clone()
	updated.TradeID = existing.TradeID
	updated.OrderType = existing.OrderType
	updated.TPIndex = existing.TPIndex
	s.orders[order.ID] = updated

	return nil
}

// GetOrdersByTradeID retrieves all orders of a trade, ordered by slot.
func (s *Store) GetOrdersByTradeID(_ context.Context, tradeID string) ([]*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Order

	for _, order := range s.orders {
		if order.TradeID == tradeID {
			result = append(result, order.Clone())
		}
	}

	storage.SortOrders(result)

	return result, nil
}

// InsertEvaluation appends an evaluation result.
func (s *Store) InsertEvaluation(_ context.Context, record *types.EvaluationRecord) error {
	if record == nil || record.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evaluations[record.ID]; exists {
		return storage.ErrDuplicateKey
	}

	stored := *record
	stored.Result.Violations = append([]types.Violation(nil), record.Result.Violations...)
	s.evaluations[record.ID] = &stored

	return nil
}

// GetEvaluations retrieves the evaluations of channel, ordered by created_at ASC.
func (s *Store) GetEvaluations(_ context.Context, channel string) ([]*types.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.EvaluationRecord

	for _, record := range s.evaluations {
		if channel != "" && record.Channel != channel {
			continue
		}

		copied := *record
		result = append(result, &copied)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}

		return result[i].ID < result[j].ID
	})

	return result, nil
}
