package monitor

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/storage/memory"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/mocks"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// scriptedProvider serves prices of each pair in order and then repeats the last one.
type scriptedProvider struct {
	mu     sync.Mutex
	prices map[string][]float64
}

func (p *scriptedProvider) GetPriceHistory(context.Context, string, time.Time, time.Time) ([]types.PricePoint, error) {
	return nil, nil
}

func (p *scriptedProvider) GetCurrentPrice(_ context.Context, pair string) (optional.Option[float64], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prices := p.prices[pair]
	if len(prices) == 0 {
		return optional.None[float64](), nil
	}

	price := prices[0]
	if len(prices) > 1 {
		p.prices[pair] = prices[1:]
	}

	return optional.Some(price), nil
}

// tickingClock advances one second per call.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)

	return c.now
}

func openTrade(id, pair string) *types.Trade {
	//nolint:exhaustruct
	return &types.Trade{
		ID:          id,
		Channel:     "alpha",
		TradingPair: pair,
		EntryPrice:  100,
		StopLoss:    95,
		TakeProfits: []float64{105},
		Quantity:    10,
		Leverage:    1,
		Status:      types.TradeStatusPending,
		CreatedAt:   t0,
	}
}

// flakyStore fails the first write that fills the first take-profit leg.
type flakyStore struct {
	*memory.Store

	mu     sync.Mutex
	failed bool
}

func (f *flakyStore) UpdateOrder(ctx context.Context, order *types.Order) error {
	f.mu.Lock()
	fail := !f.failed && order.IsFilled() && order.Key() == "take_profit:0"
	if fail {
		f.failed = true
	}
	f.mu.Unlock()

	if fail {
		return errors.New(errors.ErrCodeStorageFailed, "connection reset")
	}

	return f.Store.UpdateOrder(ctx, order)
}

func (f *flakyStore) hasFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failed
}

type MonitorTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Store
	clock *tickingClock
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func (suite *MonitorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.clock = &tickingClock{mu: sync.Mutex{}, now: t0.Add(time.Hour)}
}

func (suite *MonitorTestSuite) newMonitor(provider *scriptedProvider, rescan time.Duration) *Monitor {
	cfg := Config{Channel: "alpha", PollInterval: time.Millisecond, Rescan: rescan}

	return New(suite.store, provider, cfg, logger.NewNopLogger()).WithClock(suite.clock.Now)
}

func (suite *MonitorTestSuite) status(id string) types.TradeStatus {
	trade, err := suite.store.GetTrade(suite.ctx, id)
	suite.Require().NoError(err)

	return trade.Status
}

func (suite *MonitorTestSuite) start(m *Monitor) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(suite.ctx)
	done := make(chan error, 1)

	go func() { done <- m.Run(ctx) }()

	return cancel, done
}

func (suite *MonitorTestSuite) TestSettlesOpenTrades() {
	suite.Require().NoError(suite.store.InsertTrade(suite.ctx, openTrade("win", "BTCUSDT")))
	suite.Require().NoError(suite.store.InsertTrade(suite.ctx, openTrade("loss", "ETHUSDT")))

	provider := &scriptedProvider{mu: sync.Mutex{}, prices: map[string][]float64{
		"BTCUSDT": {100, 100.05, 99, 102, 105},
		"ETHUSDT": {100, 96, 94},
	}}

	cancel, done := suite.start(suite.newMonitor(provider, time.Hour))
	defer cancel()

	suite.Eventually(func() bool {
		return suite.status("win") == types.TradeStatusClosed && suite.status("loss") == types.TradeStatusStopped
	}, 5*time.Second, 5*time.Millisecond)

	win, err := suite.store.GetTrade(suite.ctx, "win")
	suite.Require().NoError(err)
	suite.InDelta(50.0, win.PnL.Unwrap(), 1e-9)

	loss, err := suite.store.GetTrade(suite.ctx, "loss")
	suite.Require().NoError(err)
	suite.InDelta(-60.0, loss.PnL.Unwrap(), 1e-9)

	cancel()
	suite.NoError(<-done)
}

func (suite *MonitorTestSuite) TestPicksUpNewTrades() {
	provider := &scriptedProvider{mu: sync.Mutex{}, prices: map[string][]float64{
		"BTCUSDT": {100},
	}}

	m := suite.newMonitor(provider, 5*time.Millisecond)
	cancel, done := suite.start(m)

	suite.Require().NoError(suite.store.InsertTrade(suite.ctx, openTrade("late", "BTCUSDT")))

	suite.Eventually(func() bool { return m.Running() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	suite.NoError(<-done)
	suite.Equal(0, m.Running())
	suite.Equal(types.TradeStatusPending, suite.status("late"))
}

func (suite *MonitorTestSuite) TestStorageFailure() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().GetActiveTrades(gomock.Any(), "").Return(nil, stderrors.New("connection reset"))

	m := New(store, &scriptedProvider{mu: sync.Mutex{}, prices: nil}, Config{Channel: "", PollInterval: 0, Rescan: 0}, nil)

	err := m.Run(suite.ctx)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStorageFailed))
}

func (suite *MonitorTestSuite) TestPollingSourceSkipsGaps() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	provider := mocks.NewMockPriceSeriesProvider(ctrl)
	gomock.InOrder(
		provider.EXPECT().GetCurrentPrice(gomock.Any(), "BTCUSDT").
			Return(optional.None[float64](), errors.New(errors.ErrCodeCurrentPriceFailed, "timeout")),
		provider.EXPECT().GetCurrentPrice(gomock.Any(), "BTCUSDT").Return(optional.None[float64](), nil),
		provider.EXPECT().GetCurrentPrice(gomock.Any(), "BTCUSDT").Return(optional.Some(101.5), nil),
	)

	source := NewPollingSource(provider, "BTCUSDT", 0, suite.clock.Now, nil)

	point, ok, err := source.Next(suite.ctx)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal(101.5, point.Price)
	suite.Equal(t0.Add(time.Hour+time.Second), point.Timestamp)
}

func (suite *MonitorTestSuite) TestPollingSourceStopsOnFatalError() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	provider := mocks.NewMockPriceSeriesProvider(ctrl)
	provider.EXPECT().GetCurrentPrice(gomock.Any(), "BTCUSDT").
		Return(optional.None[float64](), errors.New(errors.ErrCodeInvalidParameter, "unknown symbol"))

	_, ok, err := NewPollingSource(provider, "BTCUSDT", 0, nil, nil).Next(suite.ctx)
	suite.False(ok)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *MonitorTestSuite) TestPollingSourceStopsOnCancel() {
	provider := &scriptedProvider{mu: sync.Mutex{}, prices: map[string][]float64{"BTCUSDT": {100}}}
	source := NewPollingSource(provider, "BTCUSDT", time.Hour, nil, nil)

	_, ok, err := source.Next(suite.ctx)
	suite.Require().NoError(err)
	suite.True(ok)

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, ok, err = source.Next(ctx)
	suite.False(ok)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *MonitorTestSuite) TestRecoversFromTransientStoreFailure() {
	trade := openTrade("split", "BTCUSDT")
	trade.StopLoss = 90
	trade.TakeProfits = []float64{110, 120}
	suite.Require().NoError(suite.store.InsertTrade(suite.ctx, trade))

	provider := &scriptedProvider{mu: sync.Mutex{}, prices: map[string][]float64{
		"BTCUSDT": {100, 105, 110, 120},
	}}

	store := &flakyStore{Store: suite.store, mu: sync.Mutex{}, failed: false}
	cfg := Config{Channel: "alpha", PollInterval: time.Millisecond, Rescan: time.Hour}
	m := New(store, provider, cfg, logger.NewNopLogger()).WithClock(suite.clock.Now)

	cancel, done := suite.start(m)
	defer cancel()

	suite.Eventually(func() bool {
		return suite.status("split") == types.TradeStatusClosed
	}, 5*time.Second, 5*time.Millisecond)
	suite.True(store.hasFailed())

	stored, err := suite.store.GetTrade(suite.ctx, "split")
	suite.Require().NoError(err)

	orders, err := suite.store.GetOrdersByTradeID(suite.ctx, "split")
	suite.Require().NoError(err)

	legPnL, exited := 0.0, 0.0

	for _, o := range orders {
		if o.OrderType != types.OrderTypeTakeProfit {
			continue
		}

		suite.Equal(types.OrderStatusFilled, o.Status, o.Key())
		exited += o.Quantity
		legPnL += (o.FilledPrice.Unwrap() - 100) * o.Quantity
	}

	// Every leg is booked once: 5 at 110 and 5 at 120.
	suite.InDelta(stored.Quantity, exited, 1e-9)
	suite.InDelta(150.0, stored.PnL.Unwrap(), 1e-9)
	suite.InDelta(legPnL, stored.PnL.Unwrap(), 1e-9)

	cancel()
	suite.NoError(<-done)
}
