// Package coordinator settles the open trades of a channel in parallel and
// scores the settled trades against every configured prop firm rule set.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-signals/internal/evaluator"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/settlement"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency      = 4
	DefaultMaxDurationDays  = 30
	DefaultMaxFetchAttempts = 3
	DefaultRetryBackoff     = time.Second
)

type Config struct {
	Concurrency      int
	MaxDurationDays  int
	MaxFetchAttempts int
	// RetryBackoff is the first retry delay. It doubles on every attempt.
	RetryBackoff time.Duration
	// MarkOpenTrades marks still-open trades at the current price before
	// evaluation, so the equity figure includes their unrealized PnL.
	MarkOpenTrades bool
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.MaxDurationDays <= 0 {
		c.MaxDurationDays = DefaultMaxDurationDays
	}

	if c.MaxFetchAttempts <= 0 {
		c.MaxFetchAttempts = DefaultMaxFetchAttempts
	}

	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}

	return c
}

// Progress is reported once per trade when its settlement finishes.
// Callbacks are serialized.
type Progress struct {
	Done    int
	Total   int
	TradeID string
	Status  types.TradeStatus
	Err     error
}

type ProgressFunc func(Progress)

// Outcome is the settlement result of one trade. Err is set when every
// attempt failed; the trade then stays open for a later run.
type Outcome struct {
	TradeID  string
	Status   types.TradeStatus
	Settled  bool
	Attempts int
	Err      error
}

type Report struct {
	Channel     string
	Outcomes    []Outcome
	Evaluations []*types.EvaluationRecord
}

// Failed counts the trades whose settlement gave up with an error.
func (r *Report) Failed() int {
	n := 0

	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}

	return n
}

type Coordinator struct {
	store    storage.Store
	provider marketdata.PriceSeriesProvider
	rules    []types.PropFirmRule
	cfg      Config
	settle   []settlement.Option
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
	progress ProgressFunc
}

type Option func(*Coordinator)

func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Coordinator) {
		c.progress = fn
	}
}

// WithSettlementOptions passes options to every settlement engine.
func WithSettlementOptions(opts ...settlement.Option) Option {
	return func(c *Coordinator) {
		c.settle = append(c.settle, opts...)
	}
}

// WithIDGenerator replaces uuid for evaluation record ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		c.newID = fn
	}
}

// New validates the rule sets and returns a coordinator. Rule names must be unique.
func New(store storage.Store, provider marketdata.PriceSeriesProvider, rules []types.PropFirmRule, cfg Config, opts ...Option) (*Coordinator, error) {
	seen := make(map[string]struct{}, len(rules))

	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, err
		}

		if _, dup := seen[rules[i].Name]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "prop firm %q configured twice", rules[i].Name)
		}

		seen[rules[i].Name] = struct{}{}
	}

	c := &Coordinator{
		store:    store,
		provider: provider,
		rules:    rules,
		cfg:      cfg.withDefaults(),
		settle:   nil,
		log:      logger.NewNopLogger(),
		now:      time.Now,
		newID:    uuid.NewString,
		progress: nil,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.Named("coordinator")

	return c, nil
}

// Run settles the open trades of channel and evaluates the result. Trade
// failures are reported in the outcomes; only storage failures while
// listing or persisting, and cancellation, fail the run.
func (c *Coordinator) Run(ctx context.Context, channel string) (*Report, error) {
	outcomes, err := c.Settle(ctx, channel)
	if err != nil {
		return nil, err
	}

	records, err := c.Evaluate(ctx, channel)
	if err != nil {
		return nil, err
	}

	return &Report{Channel: channel, Outcomes: outcomes, Evaluations: records}, nil
}

// Settle replays every pending and active trade of channel, at most
// Concurrency at a time.
func (c *Coordinator) Settle(ctx context.Context, channel string) ([]Outcome, error) {
	if channel == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "channel is required")
	}

	trades, err := c.store.GetActiveTrades(ctx, channel)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "load open trades of %s", channel)
	}

	c.log.Info("settling trades",
		zap.String("channel", channel),
		zap.Int("trades", len(trades)),
		zap.Int("concurrency", c.cfg.Concurrency),
	)

	outcomes := make([]Outcome, len(trades))

	var (
		mu   sync.Mutex
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)

	for i, trade := range trades {
		g.Go(func() error {
			outcomes[i] = c.settleTrade(ctx, trade)

			mu.Lock()
			defer mu.Unlock()

			done++

			if c.progress != nil {
				c.progress(Progress{Done: done, Total: len(trades), TradeID: trade.ID, Status: outcomes[i].Status, Err: outcomes[i].Err})
			}

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}

	return outcomes, nil
}

// settleTrade runs one engine, retrying retryable failures with exponential
// backoff. Each attempt reloads the trade so it resumes from stored state.
func (c *Coordinator) settleTrade(ctx context.Context, trade *types.Trade) Outcome {
	log := c.log.With(zap.String("trade_id", trade.ID), zap.String("pair", trade.TradingPair))
	outcome := Outcome{TradeID: trade.ID, Status: trade.Status, Settled: false, Attempts: 0, Err: nil}
	current := trade

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	attempt := func() error {
		outcome.Attempts++

		if outcome.Attempts > 1 {
			reloaded, err := c.store.GetTrade(ctx, trade.ID)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeStorageFailed, err, "reload trade %s", trade.ID)
			}

			current = reloaded
		}

		// The engine owns current from here on; a failed write may leave it
		// ahead of the store, so only a clean run reports its status.
		stored := current.Status

		engine := settlement.NewEngine(current, c.provider, c.store, c.engineOptions()...)
		if err := engine.Initialize(ctx, c.cfg.MaxDurationDays); err != nil {
			outcome.Status = stored

			return retryable(err)
		}

		settled, err := engine.Process(ctx)
		if err != nil {
			outcome.Status, outcome.Settled = stored, false

			return retryable(err)
		}

		outcome.Status = engine.Trade().Status
		outcome.Settled = settled

		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("settlement attempt failed, retrying",
			zap.Int("attempt", outcome.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	retries := uint64(c.cfg.MaxFetchAttempts - 1)

	err := backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if err != nil {
		outcome.Err = err
		log.Error("settlement gave up",
			zap.Int("attempts", outcome.Attempts),
			zap.Int("code", int(errors.GetCode(err))),
			zap.Error(err),
		)

		return outcome
	}

	log.Debug("trade processed", zap.String("status", string(outcome.Status)), zap.Bool("settled", outcome.Settled))

	return outcome
}

func (c *Coordinator) engineOptions() []settlement.Option {
	opts := []settlement.Option{settlement.WithLogger(c.log), settlement.WithClock(c.now)}

	return append(opts, c.settle...)
}

// retryable stops the retry loop for errors a second attempt cannot fix.
func retryable(err error) error {
	if errors.IsRetryable(err) {
		return err
	}

	return backoff.Permanent(err)
}

// Evaluate scores the closed trades of channel against every rule set and
// persists one record per rule set.
func (c *Coordinator) Evaluate(ctx context.Context, channel string) ([]*types.EvaluationRecord, error) {
	closed, err := c.store.GetClosedTrades(ctx, channel)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "load closed trades of %s", channel)
	}

	open, err := c.store.GetActiveTrades(ctx, channel)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "load open trades of %s", channel)
	}

	unrealized := 0.0
	if c.cfg.MarkOpenTrades {
		unrealized = c.markOpenTrades(ctx, open)
	}

	records := make([]*types.EvaluationRecord, 0, len(c.rules))

	for _, rule := range c.rules {
		e, err := evaluator.New(rule, evaluator.WithLogger(c.log))
		if err != nil {
			return nil, err
		}

		e.AddTrades(closed)
		e.AddTrades(open)

		e.UpdateEquity(unrealized)

		record := &types.EvaluationRecord{
			ID:        c.newID(),
			Channel:   channel,
			Result:    e.Evaluate(),
			CreatedAt: c.now().UTC(),
		}

		if err := c.store.InsertEvaluation(ctx, record); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "persist evaluation of %s", rule.Name)
		}

		c.log.Info("evaluation finished",
			zap.String("channel", channel),
			zap.String("prop_firm", rule.Name),
			zap.Bool("passed", record.Result.Passed),
			zap.Int("violations", len(record.Result.Violations)),
			zap.Float64("final_balance", record.Result.Metrics.FinalBalance),
		)

		records = append(records, record)
	}

	return records, nil
}

// markOpenTrades sums the unrealized PnL of the active trades at the current
// price. Trades without a quote are left out.
func (c *Coordinator) markOpenTrades(ctx context.Context, open []*types.Trade) float64 {
	total := 0.0

	for _, t := range open {
		if t.Status != types.TradeStatusActive {
			continue
		}

		price, err := c.provider.GetCurrentPrice(ctx, t.TradingPair)
		if err != nil || price.IsNone() {
			c.log.Warn("no current price for open trade", zap.String("trade_id", t.ID), zap.Error(err))

			continue
		}

		m, err := settlement.Inspect(ctx, t, c.store, c.engineOptions()...)
		if err != nil {
			c.log.Warn("failed to load open trade", zap.String("trade_id", t.ID), zap.Error(err))

			continue
		}

		total += m.UnrealizedPnL(price.Unwrap())
	}

	return total
}
