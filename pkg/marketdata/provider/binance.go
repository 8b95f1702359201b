package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// binanceKlinesPageSize is the maximum number of klines returned per request.
const binanceKlinesPageSize = 1000

// BinanceKlinesService is the subset of the klines request builder we use.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient abstracts the REST client so tests can inject fakes.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
	// LastPrice returns the ticker price string for symbol.
	LastPrice(ctx context.Context, symbol string) (string, error)
}

type binanceAPIClient struct {
	client *binance.Client
}

type binanceKlinesService struct {
	service *binance.KlinesService
}

func (s *binanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	s.service.Symbol(symbol)

	return s
}

func (s *binanceKlinesService) Interval(interval string) BinanceKlinesService {
	s.service.Interval(interval)

	return s
}

func (s *binanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	s.service.StartTime(startTime)

	return s
}

func (s *binanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	s.service.EndTime(endTime)

	return s
}

func (s *binanceKlinesService) Limit(limit int) BinanceKlinesService {
	s.service.Limit(limit)

	return s
}

func (s *binanceKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

func (c *binanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesService{service: c.client.NewKlinesService()}
}

func (c *binanceAPIClient) LastPrice(ctx context.Context, symbol string) (string, error) {
	prices, err := c.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return "", err
	}

	if len(prices) == 0 {
		return "", nil
	}

	return prices[0].Price, nil
}

// BinanceClient serves price history from klines and the current price from the ticker endpoint.
type BinanceClient struct {
	api      BinanceAPIClient
	interval string
	limiter  ratelimit.Limiter
	log      *logger.Logger
}

// NewBinanceClient creates a Binance backed provider. Empty keys are fine for public market data.
func NewBinanceClient(apiKey, secretKey string, timespan marketdata.Timespan, limiter ratelimit.Limiter, log *logger.Logger) (*BinanceClient, error) {
	return NewBinanceClientWithAPI(&binanceAPIClient{client: binance.NewClient(apiKey, secretKey)}, timespan, limiter, log)
}

// NewBinanceClientWithAPI creates a provider around an existing API client.
func NewBinanceClientWithAPI(api BinanceAPIClient, timespan marketdata.Timespan, limiter ratelimit.Limiter, log *logger.Logger) (*BinanceClient, error) {
	interval, err := timespan.Binance()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance timespan", err)
	}

	if limiter == nil {
		limiter = ratelimit.Noop{}
	}

	return &BinanceClient{
		api:      api,
		interval: interval,
		limiter:  limiter,
		log:      log.Named("binance"),
	}, nil
}

// GetPriceHistory pages through klines and uses each bar's close as the price point.
func (c *BinanceClient) GetPriceHistory(ctx context.Context, pair string, from, to time.Time) ([]types.PricePoint, error) {
	endMillis := to.UnixMilli()
	cursor := from.UnixMilli()

	var points []types.PricePoint

	for cursor <= endMillis {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := c.api.NewKlinesService().
			Symbol(pair).
			Interval(c.interval).
			StartTime(cursor).
			EndTime(endMillis).
			Limit(binanceKlinesPageSize).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "failed to fetch klines for %s", pair)
		}

		for _, k := range klines {
			closePrice, err := strconv.ParseFloat(k.Close, 64)
			if err != nil {
				c.log.Warn("skipping kline with unparsable close",
					zap.String("pair", pair),
					zap.Int64("open_time", k.OpenTime),
					zap.String("close", k.Close),
				)

				continue
			}

			points = append(points, types.PricePoint{
				Timestamp: time.UnixMilli(k.CloseTime).UTC(),
				Price:     closePrice,
			})
		}

		if len(klines) < binanceKlinesPageSize {
			break
		}

		// Continue after the last close to avoid duplicates
		cursor = klines[len(klines)-1].CloseTime + 1
	}

	return marketdata.Normalize(points, from, to), nil
}

// GetCurrentPrice returns the ticker price, or None when Binance has no quote for the pair.
func (c *BinanceClient) GetCurrentPrice(ctx context.Context, pair string) (optional.Option[float64], error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return optional.None[float64](), err
	}

	raw, err := c.api.LastPrice(ctx, pair)
	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeCurrentPriceFailed, err, "failed to fetch ticker for %s", pair)
	}

	if raw == "" {
		return optional.None[float64](), nil
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		c.log.Warn("ignoring invalid ticker price", zap.String("pair", pair), zap.String("price", raw))

		return optional.None[float64](), nil
	}

	return optional.Some(price), nil
}
