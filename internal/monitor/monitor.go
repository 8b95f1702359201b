// Package monitor settles open trades against live prices. It drives the
// same settlement.Machine the historical replay uses, fed by a PollingSource.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/settlement"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultRescan       = time.Minute
)

type Store interface {
	storage.TradeStore
	storage.OrderStore
}

type Config struct {
	// Channel limits monitoring to one channel. Empty means all channels.
	Channel      string
	PollInterval time.Duration
	// Rescan is how often the store is checked for new open trades.
	Rescan time.Duration
}

// Monitor runs one goroutine per open trade until the trade is terminal or
// the context is cancelled.
type Monitor struct {
	store    Store
	provider marketdata.PriceSeriesProvider
	cfg      Config
	opts     []settlement.Option
	now      func() time.Time
	log      *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

func New(store Store, provider marketdata.PriceSeriesProvider, cfg Config, log *logger.Logger, opts ...settlement.Option) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.Rescan <= 0 {
		cfg.Rescan = DefaultRescan
	}

	zl := zap.NewNop()
	if log != nil {
		zl = log.Named("monitor").Logger
	}

	return &Monitor{
		store:    store,
		provider: provider,
		cfg:      cfg,
		opts:     append([]settlement.Option{settlement.WithLogger(log)}, opts...),
		now:      time.Now,
		log:      zl,
		mu:       sync.Mutex{},
		running:  make(map[string]struct{}),
	}
}

// WithClock replaces the clock used to timestamp polled prices.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	m.opts = append(m.opts, settlement.WithClock(now))

	return m
}

// Run blocks until ctx is cancelled. A failure to list the open trades is
// returned; failures of a single trade are logged and end only that trade.
func (m *Monitor) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	defer wg.Wait()

	ticker := time.NewTicker(m.cfg.Rescan)
	defer ticker.Stop()

	for {
		if err := m.scan(ctx, &wg); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		select {
		case <-ctx.Done():
			m.log.Info("monitor stopping")

			return nil
		case <-ticker.C:
		}
	}
}

// Running returns the number of trades currently being watched.
func (m *Monitor) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.running)
}

func (m *Monitor) scan(ctx context.Context, wg *sync.WaitGroup) error {
	trades, err := m.store.GetActiveTrades(ctx, m.cfg.Channel)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "load open trades", err)
	}

	for _, trade := range trades {
		if !m.claim(trade.ID) {
			continue
		}

		wg.Add(1)

		go func(t *types.Trade) {
			defer wg.Done()
			defer m.release(t.ID)

			m.watch(ctx, t)
		}(trade)
	}

	return nil
}

func (m *Monitor) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.running[id]; ok {
		return false
	}

	m.running[id] = struct{}{}

	return true
}

func (m *Monitor) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.running, id)
}

func (m *Monitor) watch(ctx context.Context, trade *types.Trade) {
	log := m.log.With(zap.String("trade_id", trade.ID), zap.String("pair", trade.TradingPair))

	machine := settlement.NewMachine(trade, m.store, m.opts...)
	if err := machine.Load(ctx); err != nil {
		log.Error("failed to load trade", zap.Error(err))

		return
	}

	source := NewPollingSource(m.provider, trade.TradingPair, m.cfg.PollInterval, m.now, log)

	log.Info("watching trade", zap.String("status", string(machine.Status())))

	for {
		point, ok, err := source.Next(ctx)
		if err != nil || !ok {
			if ctx.Err() == nil {
				log.Error("price source ended", zap.Error(err))
			}

			return
		}

		done, err := step(ctx, machine, point)
		if err != nil {
			if errors.IsRetryable(err) {
				log.Warn("step failed, reloading the trade before the next price", zap.Error(err))

				continue
			}

			log.Error("step failed", zap.Error(err))

			return
		}

		if done {
			log.Info("trade settled", zap.String("status", string(machine.Status())), zap.Float64("pnl", machine.TotalPnL()))

			return
		}
	}
}

// step applies point, first rebuilding the machine from the store when an
// earlier write failed so no half-applied transition is carried forward.
func step(ctx context.Context, machine *settlement.Machine, point types.PricePoint) (bool, error) {
	if machine.Stale() {
		if err := machine.Reload(ctx); err != nil {
			return false, err
		}
	}

	return machine.Step(ctx, point)
}
