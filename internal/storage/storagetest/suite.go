// Package storagetest holds the conformance suite every storage backend runs.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/stretchr/testify/suite"
)

// StoreSuite exercises a storage.Store. Backends embed it and set NewStore.
type StoreSuite struct {
	suite.Suite

	// NewStore returns a fresh, migrated store for each test.
	NewStore func() storage.Store

	store storage.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.ctx = context.Background()
	s.store = s.NewStore()
	s.Require().NoError(s.store.Migrate(s.ctx))
	// Migrate twice to check idempotence.
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

// Trade builds a pending trade for tests.
func Trade(id, channel string, createdAt time.Time) *types.Trade {
	return &types.Trade{
		ID:                id,
		Channel:           channel,
		TradingPair:       "BTCUSDT",
		EntryPrice:        50000,
		StopLoss:          48000,
		TakeProfits:       []float64{52000, 54000},
		Quantity:          1,
		Leverage:          10,
		RiskPercentage:    1,
		Status:            types.TradeStatusPending,
		CreatedAt:         createdAt,
		EntryFilledAt:     optional.None[time.Time](),
		ExitFilledAt:      optional.None[time.Time](),
		ExitPrice:         optional.None[float64](),
		PnL:               optional.None[float64](),
		PnLPercentage:     optional.None[float64](),
		StopLossBreakeven: false,
		ExpiresAt:         optional.None[time.Time](),
	}
}

// Order builds a pending order for tests.
func Order(tradeID string, orderType types.OrderType, tpIndex optional.Option[int], price, quantity float64) *types.Order {
	return &types.Order{
		ID:          uuid.New().String(),
		TradeID:     tradeID,
		OrderType:   orderType,
		TPIndex:     tpIndex,
		Price:       price,
		Quantity:    quantity,
		Status:      types.OrderStatusPending,
		FilledAt:    optional.None[time.Time](),
		FilledPrice: optional.None[float64](),
		CreatedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func (s *StoreSuite) TestTradeRoundTrip() {
	trade := Trade("t1", "alpha", base)
	trade.ExpiresAt = optional.Some(base.Add(48 * time.Hour))
	s.Require().NoError(s.store.InsertTrade(s.ctx, trade))

	got, err := s.store.GetTrade(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(trade.TakeProfits, got.TakeProfits)
	s.Equal(types.TradeStatusPending, got.Status)
	s.True(got.CreatedAt.Equal(base))
	s.True(got.ExpiresAt.Unwrap().Equal(base.Add(48 * time.Hour)))
	s.True(got.PnL.IsNone())
	s.True(got.EntryFilledAt.IsNone())
}

func (s *StoreSuite) TestInsertDuplicateTrade() {
	s.Require().NoError(s.store.InsertTrade(s.ctx, Trade("t1", "alpha", base)))
	err := s.store.InsertTrade(s.ctx, Trade("t1", "alpha", base))
	s.True(errors.Is(err, storage.ErrDuplicateKey), "got %v", err)
}

func (s *StoreSuite) TestUpdateTrade() {
	trade := Trade("t1", "alpha", base)
	s.Require().NoError(s.store.InsertTrade(s.ctx, trade))

	trade.Status = types.TradeStatusStopped
	trade.StopLoss = 50000
	trade.StopLossBreakeven = true
	trade.EntryFilledAt = optional.Some(base.Add(time.Minute))
	trade.ExitFilledAt = optional.Some(base.Add(time.Hour))
	trade.ExitPrice = optional.Some(48000.0)
	trade.PnL = optional.Some(6666.666)
	trade.PnLPercentage = optional.Some(133.33)
	s.Require().NoError(s.store.UpdateTrade(s.ctx, trade))

	got, err := s.store.GetTrade(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(types.TradeStatusStopped, got.Status)
	s.Equal(50000.0, got.StopLoss)
	s.True(got.StopLossBreakeven)
	s.InDelta(6666.666, got.PnL.Unwrap(), 1e-9)
	s.Equal(48000.0, got.ExitPrice.Unwrap())
	s.True(got.ExitFilledAt.Unwrap().Equal(base.Add(time.Hour)))
}

func (s *StoreSuite) TestUpdateMissingTrade() {
	err := s.store.UpdateTrade(s.ctx, Trade("missing", "alpha", base))
	s.True(errors.Is(err, storage.ErrNotFound), "got %v", err)

	_, err = s.store.GetTrade(s.ctx, "missing")
	s.True(errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func (s *StoreSuite) TestTradesByStatus() {
	statuses := []types.TradeStatus{
		types.TradeStatusPending,
		types.TradeStatusActive,
		types.TradeStatusClosed,
		types.TradeStatusStopped,
		types.TradeStatusCancelled,
	}

	for i, status := range statuses {
		trade := Trade(fmt.Sprintf("t%d", i), "alpha", base.Add(time.Duration(len(statuses)-i)*time.Minute))
		trade.Status = status
		s.Require().NoError(s.store.InsertTrade(s.ctx, trade))
	}

	other := Trade("other", "beta", base)
	s.Require().NoError(s.store.InsertTrade(s.ctx, other))

	active, err := s.store.GetActiveTrades(s.ctx, "alpha")
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	// Ordered by created_at ascending.
	s.Equal("t1", active[0].ID)
	s.Equal("t0", active[1].ID)

	closed, err := s.store.GetClosedTrades(s.ctx, "alpha")
	s.Require().NoError(err)
	s.Len(closed, 2)

	all, err := s.store.GetTradesByStatus(s.ctx, "", types.TradeStatusPending)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *StoreSuite) TestOrders() {
	s.Require().NoError(s.store.InsertTrade(s.ctx, Trade("t1", "alpha", base)))

	tp1 := Order("t1", types.OrderTypeTakeProfit, optional.Some(1), 54000, 0.5)
	tp0 := Order("t1", types.OrderTypeTakeProfit, optional.Some(0), 52000, 0.5)
	sl := Order("t1", types.OrderTypeStopLoss, optional.None[int](), 48000, 1)
	entry := Order("t1", types.OrderTypeEntry, optional.None[int](), 50000, 1)

	for _, o := range []*types.Order{tp1, tp0, sl, entry} {
		s.Require().NoError(s.store.InsertOrder(s.ctx, o))
	}

	orders, err := s.store.GetOrdersByTradeID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Require().Len(orders, 4)
	s.Equal(types.OrderTypeEntry, orders[0].OrderType)
	s.Equal(types.OrderTypeStopLoss, orders[1].OrderType)
	s.Equal(0, orders[2].TPIndex.Unwrap())
	s.Equal(1, orders[3].TPIndex.Unwrap())
	s.True(orders[1].TPIndex.IsNone())

	tp0.Status = types.OrderStatusFilled
	tp0.FilledAt = optional.Some(base.Add(time.Hour))
	tp0.FilledPrice = optional.Some(52000.0)
	s.Require().NoError(s.store.UpdateOrder(s.ctx, tp0))

	orders, err = s.store.GetOrdersByTradeID(s.ctx, "t1")
	s.Require().NoError(err)
	s.True(orders[2].IsFilled())
	s.Equal(52000.0, orders[2].FilledPrice.Unwrap())
	s.True(orders[2].FilledAt.Unwrap().Equal(base.Add(time.Hour)))

	none, err := s.store.GetOrdersByTradeID(s.ctx, "unknown")
	s.NoError(err)
	s.Empty(none)
}

func (s *StoreSuite) TestOrderSlotsAreUnique() {
	s.Require().NoError(s.store.InsertTrade(s.ctx, Trade("t1", "alpha", base)))
	s.Require().NoError(s.store.InsertOrder(s.ctx, Order("t1", types.OrderTypeStopLoss, optional.None[int](), 48000, 1)))
	s.Require().NoError(s.store.InsertOrder(s.ctx, Order("t1", types.OrderTypeTakeProfit, optional.Some(0), 52000, 1)))

	err := s.store.InsertOrder(s.ctx, Order("t1", types.OrderTypeStopLoss, optional.None[int](), 47000, 1))
	s.True(errors.Is(err, storage.ErrDuplicateKey), "got %v", err)

	err = s.store.InsertOrder(s.ctx, Order("t1", types.OrderTypeTakeProfit, optional.Some(0), 52500, 1))
	s.True(errors.Is(err, storage.ErrDuplicateKey), "got %v", err)

	err = s.store.UpdateOrder(s.ctx, Order("t1", types.OrderTypeEntry, optional.None[int](), 1, 1))
	s.True(errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func (s *StoreSuite) TestConcurrentTradeWriters() {
	const workers = 8

	for i := 0; i < workers; i++ {
		s.Require().NoError(s.store.InsertTrade(s.ctx, Trade(fmt.Sprintf("t%d", i), "alpha", base)))
	}

	var wg sync.WaitGroup

	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("t%d", i)
			if err := s.store.InsertOrder(s.ctx, Order(id, types.OrderTypeEntry, optional.None[int](), 50000, 1)); err != nil {
				errs <- err

				return
			}

			trade, err := s.store.GetTrade(s.ctx, id)
			if err != nil {
				errs <- err

				return
			}

			trade.Status = types.TradeStatusActive
			errs <- s.store.UpdateTrade(s.ctx, trade)
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	active, err := s.store.GetTradesByStatus(s.ctx, "alpha", types.TradeStatusActive)
	s.Require().NoError(err)
	s.Len(active, workers)
}

func (s *StoreSuite) TestEvaluations() {
	record := &types.EvaluationRecord{
		ID:      uuid.New().String(),
		Channel: "alpha",
		Result: types.EvaluationResult{
			PropFirmName: "ftmo",
			Passed:       false,
			Violations: []types.Violation{
				{
					Rule:     types.RuleDailyDrawdown,
					Message:  "daily loss 600.00 exceeds limit 500.00 on 2024-03-01",
					Severity: types.SeverityError,
					Details:  map[string]any{"date": "2024-03-01"},
				},
			},
			Metrics:   types.Metrics{InitialBalance: 10000, FinalBalance: 9400, TotalTrades: 2}, //nolint:exhaustruct
			StartDate: base,
			EndDate:   base.Add(time.Hour),
		},
		CreatedAt: base.Add(2 * time.Hour),
	}
	s.Require().NoError(s.store.InsertEvaluation(s.ctx, record))
	s.True(errors.Is(s.store.InsertEvaluation(s.ctx, record), storage.ErrDuplicateKey))

	got, err := s.store.GetEvaluations(s.ctx, "alpha")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("ftmo", got[0].Result.PropFirmName)
	s.False(got[0].Result.Passed)
	s.Require().Len(got[0].Result.Violations, 1)
	s.Equal(types.RuleDailyDrawdown, got[0].Result.Violations[0].Rule)
	s.Equal("2024-03-01", got[0].Result.Violations[0].Details["date"])
	s.Equal(9400.0, got[0].Result.Metrics.FinalBalance)
	s.Equal(2, got[0].Result.Metrics.TotalTrades)
	s.True(got[0].Result.EndDate.Equal(base.Add(time.Hour)))

	other, err := s.store.GetEvaluations(s.ctx, "beta")
	s.NoError(err)
	s.Empty(other)
}
