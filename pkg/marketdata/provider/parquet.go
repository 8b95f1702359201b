package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"go.uber.org/zap"
)

// ParquetProvider replays price history from parquet files through an in-memory DuckDB view.
// The files need the columns time, symbol and close, as written by writer.ParquetWriter.
type ParquetProvider struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	log    *logger.Logger
	mu     sync.Mutex
	closed bool
}

// NewParquetProvider opens DuckDB and exposes path (a file or glob) as the market_data view.
func NewParquetProvider(path string, log *logger.Logger) (*ParquetProvider, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "parquet provider requires a path")
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to open duckdb", err)
	}

	// CREATE VIEW does not accept bound parameters.
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM read_parquet('%s')`, strings.ReplaceAll(path, "'", "''"))
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read parquet %s", path)
	}

	return &ParquetProvider{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		log:    log.Named("parquet"),
		mu:     sync.Mutex{},
		closed: false,
	}, nil
}

// GetPriceHistory selects the closes of pair inside [from, to].
func (p *ParquetProvider) GetPriceHistory(ctx context.Context, pair string, from, to time.Time) ([]types.PricePoint, error) {
	query, args, err := p.sq.
		Select("time", "close").
		From("market_data").
		Where(squirrel.Eq{"symbol": pair}).
		Where(squirrel.GtOrEq{"time": from}).
		Where(squirrel.LtOrEq{"time": to}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePriceFetchFailed, "failed to build query", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "failed to query price history for %s", pair)
	}
	defer rows.Close()

	var points []types.PricePoint

	for rows.Next() {
		var point types.PricePoint
		if err := rows.Scan(&point.Timestamp, &point.Price); err != nil {
			return nil, errors.Wrap(errors.ErrCodePriceFetchFailed, "failed to scan price point", err)
		}

		point.Timestamp = point.Timestamp.UTC()
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePriceFetchFailed, "failed to iterate price history", err)
	}

	p.log.Debug("loaded parquet history", zap.String("pair", pair), zap.Int("count", len(points)))

	return marketdata.Normalize(points, from, to), nil
}

// GetCurrentPrice returns the latest close stored for pair.
func (p *ParquetProvider) GetCurrentPrice(ctx context.Context, pair string) (optional.Option[float64], error) {
	query, args, err := p.sq.
		Select("close").
		From("market_data").
		Where(squirrel.Eq{"symbol": pair}).
		OrderBy("time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return optional.None[float64](), errors.Wrap(errors.ErrCodeCurrentPriceFailed, "failed to build query", err)
	}

	var price float64

	err = p.db.QueryRowContext(ctx, query, args...).Scan(&price)
	if err == sql.ErrNoRows {
		return optional.None[float64](), nil
	}

	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeCurrentPriceFailed, err, "failed to query latest close for %s", pair)
	}

	return optional.Some(price), nil
}

// Close closes the underlying database.
func (p *ParquetProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	return p.db.Close()
}
