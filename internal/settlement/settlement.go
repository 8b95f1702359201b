// Package settlement is the mock exchange: a per-trade state machine that
// turns price observations into entry, take-profit and stop-loss fills.
// The same Machine is driven by the historical replay Engine and by the
// live monitor, so both paths share one set of business rules.
package settlement

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
)

const (
	// DefaultBreakevenAfterTPs moves the stop to the entry fill after the first take-profit.
	DefaultBreakevenAfterTPs = 1
	// DefaultEntryTolerancePct is the half-width of the entry band in percent of the requested entry.
	DefaultEntryTolerancePct = 0.1
)

// Store is the persistence a Machine mutates. Only the rows of its own trade are touched.
type Store interface {
	storage.TradeStore
	storage.OrderStore
}

// EventType names a state transition.
type EventType string

const (
	EventEntryFilled      EventType = "entry_filled"
	EventTakeProfitFilled EventType = "take_profit_filled"
	EventBreakevenApplied EventType = "breakeven_applied"
	EventStopLossFilled   EventType = "stop_loss_filled"
	EventClosed           EventType = "closed"
	EventCancelled        EventType = "cancelled"
)

// Event describes one transition of a trade.
type Event struct {
	Type    EventType
	TradeID string
	At      time.Time
	Price   float64
	// Quantity is the leg size for fills, zero otherwise.
	Quantity float64
	// PnL is the realized PnL of this leg for fills, and the trade total for Closed.
	PnL     float64
	TPIndex optional.Option[int]
	// Reason is set for cancellations.
	Reason string
}

// OnEventCallback is invoked synchronously after a transition has been persisted.
type OnEventCallback func(event Event)

type config struct {
	breakevenAfterTPs int
	entryTolerancePct float64
	quantityPrecision int
	now               func() time.Time
	logger            *logger.Logger
	onEvent           OnEventCallback
}

// Option configures a Machine or an Engine.
type Option func(*config)

// WithBreakevenAfterTPs sets how many take-profit fills move the stop to breakeven.
// Zero disables the breakeven move.
func WithBreakevenAfterTPs(n int) Option {
	return func(c *config) {
		c.breakevenAfterTPs = n
	}
}

// WithEntryTolerance sets the entry band half-width in percent.
func WithEntryTolerance(pct float64) Option {
	return func(c *config) {
		c.entryTolerancePct = pct
	}
}

// WithQuantityPrecision sets the number of decimals recalculated quantities are truncated to.
func WithQuantityPrecision(decimals int) Option {
	return func(c *config) {
		c.quantityPrecision = decimals
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *config) {
		c.logger = log
	}
}

// WithEventHandler registers a transition callback.
func WithEventHandler(fn OnEventCallback) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		breakevenAfterTPs: DefaultBreakevenAfterTPs,
		entryTolerancePct: DefaultEntryTolerancePct,
		quantityPrecision: utils.DefaultQuantityPrecision,
		now:               time.Now,
		logger:            logger.NewNopLogger(),
		onEvent:           nil,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.entryTolerancePct <= 0 {
		cfg.entryTolerancePct = DefaultEntryTolerancePct
	}

	if cfg.quantityPrecision < 0 {
		cfg.quantityPrecision = utils.DefaultQuantityPrecision
	}

	if cfg.breakevenAfterTPs < 0 {
		cfg.breakevenAfterTPs = 0
	}

	if cfg.logger == nil || cfg.logger.Logger == nil {
		cfg.logger = logger.NewNopLogger()
	}

	if cfg.now == nil {
		cfg.now = time.Now
	}

	return cfg
}
