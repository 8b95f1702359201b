package provider

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// PolygonAPIClient abstracts the Polygon REST client so tests can inject fakes.
type PolygonAPIClient interface {
	Aggregates(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error)
	// LastTrade returns the latest trade price and whether one exists.
	LastTrade(ctx context.Context, ticker string) (float64, bool, error)
}

type polygonAPIClient struct {
	client *polygon.Client
}

func (c *polygonAPIClient) Aggregates(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
	iter := c.client.ListAggs(ctx, params)

	var aggs []models.Agg
	for iter.Next() {
		aggs = append(aggs, iter.Item())
	}

	if iter.Err() != nil {
		return nil, iter.Err()
	}

	return aggs, nil
}

func (c *polygonAPIClient) LastTrade(ctx context.Context, ticker string) (float64, bool, error) {
	res, err := c.client.GetLastTrade(ctx, &models.GetLastTradeParams{Ticker: ticker})
	if err != nil {
		return 0, false, err
	}

	if res == nil || res.Results.Price <= 0 {
		return 0, false, nil
	}

	return res.Results.Price, true, nil
}

// PolygonClient serves aggregates as price history and the last trade as the current price.
type PolygonClient struct {
	api        PolygonAPIClient
	multiplier int
	timespan   models.Timespan
	limiter    ratelimit.Limiter
	log        *logger.Logger
}

// NewPolygonClient creates a Polygon backed provider.
func NewPolygonClient(apiKey string, timespan marketdata.Timespan, limiter ratelimit.Limiter, log *logger.Logger) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon provider requires an api key")
	}

	return NewPolygonClientWithAPI(&polygonAPIClient{client: polygon.New(apiKey)}, timespan, limiter, log)
}

// NewPolygonClientWithAPI creates a provider around an existing API client.
func NewPolygonClientWithAPI(api PolygonAPIClient, timespan marketdata.Timespan, limiter ratelimit.Limiter, log *logger.Logger) (*PolygonClient, error) {
	multiplier, span, err := timespan.Polygon()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid polygon timespan", err)
	}

	if limiter == nil {
		limiter = ratelimit.Noop{}
	}

	return &PolygonClient{
		api:        api,
		multiplier: multiplier,
		timespan:   span,
		limiter:    limiter,
		log:        log.Named("polygon"),
	}, nil
}

// GetPriceHistory lists aggregates in [from, to] and uses each bar's close.
func (c *PolygonClient) GetPriceHistory(ctx context.Context, pair string, from, to time.Time) ([]types.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     pair,
		Multiplier: c.multiplier,
		Timespan:   c.timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithLimit(50000)

	aggs, err := c.api.Aggregates(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "failed to list aggregates for %s", pair)
	}

	points := make([]types.PricePoint, 0, len(aggs))
	for _, agg := range aggs {
		points = append(points, types.PricePoint{
			Timestamp: time.Time(agg.Timestamp).UTC(),
			Price:     agg.Close,
		})
	}

	c.log.Debug("fetched aggregates", zap.String("pair", pair), zap.Int("count", len(points)))

	return marketdata.Normalize(points, from, to), nil
}

// GetCurrentPrice returns the last trade price.
func (c *PolygonClient) GetCurrentPrice(ctx context.Context, pair string) (optional.Option[float64], error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return optional.None[float64](), err
	}

	price, ok, err := c.api.LastTrade(ctx, pair)
	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeCurrentPriceFailed, err, "failed to fetch last trade for %s", pair)
	}

	if !ok {
		return optional.None[float64](), nil
	}

	return optional.Some(price), nil
}
