package monitor

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// PollingSource turns the current price of a pair into a stream of price
// points, one every interval. Retryable fetch errors and missing quotes are
// skipped; anything else ends the stream with the error.
type PollingSource struct {
	provider marketdata.PriceSeriesProvider
	pair     string
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
	polled   bool
}

func NewPollingSource(provider marketdata.PriceSeriesProvider, pair string, interval time.Duration, now func() time.Time, log *zap.Logger) *PollingSource {
	if now == nil {
		now = time.Now
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &PollingSource{
		provider: provider,
		pair:     pair,
		interval: interval,
		now:      now,
		log:      log,
		polled:   false,
	}
}

// Next blocks until a quote is available. It returns false with the context
// error once ctx is done.
func (s *PollingSource) Next(ctx context.Context) (types.PricePoint, bool, error) {
	for {
		if s.polled {
			if err := s.wait(ctx); err != nil {
				return types.PricePoint{}, false, err
			}
		}

		s.polled = true

		price, err := s.provider.GetCurrentPrice(ctx, s.pair)
		if err != nil {
			if ctx.Err() != nil {
				return types.PricePoint{}, false, ctx.Err()
			}

			if errors.IsRetryable(err) {
				s.log.Warn("current price unavailable, retrying", zap.String("pair", s.pair), zap.Error(err))

				continue
			}

			return types.PricePoint{}, false, err
		}

		if price.IsNone() || price.Unwrap() <= 0 {
			continue
		}

		return types.PricePoint{Timestamp: s.now().UTC(), Price: price.Unwrap()}, true, nil
	}
}

func (s *PollingSource) wait(ctx context.Context) error {
	if s.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
