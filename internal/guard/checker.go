package guard

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signals/internal/evaluator"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"go.uber.org/zap"
)

// Guard builds ledger snapshots from the stored trades of a channel and
// validates proposed trades against them.
type Guard struct {
	store        storage.TradeStore
	rules        []types.PropFirmRule
	log          *zap.Logger
	now          func() time.Time
	openExposure bool
}

type Option func(*Guard)

func WithLogger(l *logger.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l.Logger
		}
	}
}

// WithClock sets the time used when a proposed trade carries none.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithOpenExposure adds the worst-case loss of the channel's pending and
// active trades to every proposal.
func WithOpenExposure() Option {
	return func(g *Guard) {
		g.openExposure = true
	}
}

func New(store storage.TradeStore, rules []types.PropFirmRule, opts ...Option) *Guard {
	g := &Guard{
		store:        store,
		rules:        rules,
		log:          zap.NewNop(),
		now:          time.Now,
		openExposure: false,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check validates proposed against every rule set using the closed trades of
// channel. An empty channel falls back to the proposal's own channel.
func (g *Guard) Check(ctx context.Context, channel string, proposed types.ProposedTrade) ([]types.PreTradeValidationResult, error) {
	if err := validator.New().Struct(proposed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTrade, "invalid proposed trade", err)
	}

	if channel == "" {
		channel = proposed.Channel
	}

	at := proposed.At
	if at.IsZero() {
		at = g.now()
	}

	closed, err := g.store.GetClosedTrades(ctx, channel)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "load closed trades of %s", channel)
	}

	if g.openExposure {
		extra, err := g.exposure(ctx, channel)
		if err != nil {
			return nil, err
		}

		proposed.AdditionalWorstCaseLoss += extra
	}

	snapshots := make(map[string]types.LedgerSnapshot, len(g.rules))

	for _, rule := range g.rules {
		e, err := evaluator.New(rule)
		if err != nil {
			return nil, err
		}

		e.AddTrades(closed)
		snapshots[rule.Name] = e.Snapshot(at)
	}

	results := ValidatePreTrade(proposed, g.rules, snapshots)

	for _, r := range results {
		if !r.Allowed {
			g.log.Info("proposed trade rejected",
				zap.String("channel", channel),
				zap.String("pair", proposed.TradingPair),
				zap.String("prop_firm", r.PropFirm),
				zap.Strings("violations", r.Violations),
			)
		}
	}

	return results, nil
}

// exposure sums the worst-case loss of the open trades. A trade whose stop
// sits at breakeven contributes nothing.
func (g *Guard) exposure(ctx context.Context, channel string) (float64, error) {
	open, err := g.store.GetActiveTrades(ctx, channel)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeStorageFailed, err, "load open trades of %s", channel)
	}

	total := 0.0

	for _, t := range open {
		if t.StopLossBreakeven {
			continue
		}

		loss := WorstCaseLoss(t.EntryPrice, t.StopLoss, t.Quantity, t.Leverage)
		if math.IsInf(loss, 1) {
			g.log.Warn("open trade without stop-loss ignored in exposure", zap.String("trade_id", t.ID))

			continue
		}

		total += loss
	}

	return total, nil
}
