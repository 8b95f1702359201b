// Package provider implements marketdata.PriceSeriesProvider on top of venue
// clients, files and warehouses.
package provider

import (
	"context"
	"io"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
)

// Config selects and configures a provider.
type Config struct {
	Type     marketdata.ProviderType `yaml:"type" validate:"required,oneof=binance polygon parquet clickhouse memory"`
	Timespan marketdata.Timespan     `yaml:"timespan" validate:"omitempty,oneof=1s 1m 5m 15m 1h 1d"`
	// APIKey and SecretKey are usually loaded from the environment.
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	// Path is the parquet file or glob for the parquet provider.
	Path string `yaml:"path" validate:"required_if=Type parquet"`
	// DSN is the ClickHouse connection string.
	DSN string `yaml:"dsn" validate:"required_if=Type clickhouse"`
	// Stream enables the websocket ticker cache for live current prices (binance only).
	Stream       bool          `yaml:"stream"`
	StreamURL    string        `yaml:"stream_url"`
	StreamMaxAge time.Duration `yaml:"stream_max_age"`
}

// New builds the provider described by cfg. The limiter is shared by every call
// the provider makes. The returned closer releases file or network handles.
func New(ctx context.Context, cfg Config, limiter ratelimit.Limiter, log *logger.Logger) (marketdata.PriceSeriesProvider, io.Closer, error) {
	timespan := cfg.Timespan
	if timespan == "" {
		timespan = marketdata.TimespanOneMinute
	}

	switch cfg.Type {
	case marketdata.ProviderBinance:
		client, err := NewBinanceClient(cfg.APIKey, cfg.SecretKey, timespan, limiter, log)
		if err != nil {
			return nil, nil, err
		}

		if cfg.Stream {
			return NewBinanceTickerStream(cfg.StreamURL, client, cfg.StreamMaxAge, log), nopCloser{}, nil
		}

		return client, nopCloser{}, nil
	case marketdata.ProviderPolygon:
		client, err := NewPolygonClient(cfg.APIKey, timespan, limiter, log)
		if err != nil {
			return nil, nil, err
		}

		return client, nopCloser{}, nil
	case marketdata.ProviderParquet:
		p, err := NewParquetProvider(cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}

		return p, p, nil
	case marketdata.ProviderClickHouse:
		p, err := NewClickHouseProvider(ctx, cfg.DSN, log)
		if err != nil {
			return nil, nil, err
		}

		return p, p, nil
	case marketdata.ProviderMemory:
		return NewMemoryProvider(), nopCloser{}, nil
	default:
		return nil, nil, errors.Newf(errors.ErrCodeUnsupportedProvider, "unsupported market data provider: %s", cfg.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
