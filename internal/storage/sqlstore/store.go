// Package sqlstore implements storage.Store over database/sql for the embedded
// DuckDB and SQLite engines. Queries are built with squirrel.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver names registered by the imported database drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

var tradeColumns = []string{
	"id", "channel", "trading_pair", "entry_price", "stop_loss", "take_profits",
	"quantity", "leverage", "risk_percentage", "status", "created_at",
	"entry_filled_at", "exit_filled_at", "exit_price", "pnl", "pnl_percentage",
	"stop_loss_breakeven", "expires_at",
}

var orderColumns = []string{
	"id", "trade_id", "order_type", "tp_index", "price", "quantity",
	"status", "filled_at", "filled_price", "created_at",
}

var evaluationColumns = []string{
	"id", "channel", "prop_firm_name", "passed", "violations", "metrics",
	"start_date", "end_date", "created_at",
}

// Store is a database/sql backed storage.Store.
type Store struct {
	db     *sql.DB
	driver string
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Open opens dsn with driver ("duckdb" or "sqlite"). An empty dsn opens an in-memory database.
func Open(driver, dsn string, log *logger.Logger) (*Store, error) {
	switch driver {
	case DriverDuckDB:
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStorage, "unsupported sql driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to open %s database", driver)
	}

	// Each connection to an in-memory database is a separate database, and
	// SQLite allows a single writer, so both engines go through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to ping %s database", driver)
	}

	return &Store{
		db:     db,
		driver: driver,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: log.Named("sqlstore"),
	}, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeMigrateFailed, "failed to apply schema", err)
		}
	}

	s.logger.Debug("schema ready", zap.String("driver", s.driver))

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTrade adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *Store) InsertTrade(ctx context.Context, trade *types.Trade) error {
	if err := storage.ValidateTrade(trade); err != nil {
		return err
	}

	tps, err := json.Marshal(trade.TakeProfits)
	if err != nil {
		return fmt.Errorf("marshal take profits: %w", err)
	}

	query, args, err := s.sq.Insert("trades").Columns(tradeColumns...).Values(
		trade.ID, trade.Channel, trade.TradingPair, trade.EntryPrice, trade.StopLoss, string(tps),
		trade.Quantity, trade.Leverage, trade.RiskPercentage, string(trade.Status), toNanos(trade.CreatedAt),
		optionalNanos(trade.EntryFilledAt), optionalNanos(trade.ExitFilledAt),
		storage.ToPtr(trade.ExitPrice), storage.ToPtr(trade.PnL), storage.ToPtr(trade.PnLPercentage),
		trade.StopLossBreakeven, optionalNanos(trade.ExpiresAt),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert trade: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}

		return fmt.Errorf("insert trade: %w", err)
	}

	return nil
}

// UpdateTrade overwrites the mutable fields of a trade.
func (s *Store) UpdateTrade(ctx context.Context, trade *types.Trade) error {
	if err := storage.ValidateTrade(trade); err != nil {
		return err
	}

	query, args, err := s.sq.Update("trades").SetMap(map[string]any{
		"stop_loss":           trade.StopLoss,
		"quantity":            trade.Quantity,
		"status":              string(trade.Status),
		"entry_filled_at":     optionalNanos(trade.EntryFilledAt),
		"exit_filled_at":      optionalNanos(trade.ExitFilledAt),
		"exit_price":          storage.ToPtr(trade.ExitPrice),
		"pnl":                 storage.ToPtr(trade.PnL),
		"pnl_percentage":      storage.ToPtr(trade.PnLPercentage),
		"stop_loss_breakeven": trade.StopLossBreakeven,
		"expires_at":          optionalNanos(trade.ExpiresAt),
	}).Where(squirrel.Eq{"id": trade.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update trade: %w", err)
	}

	return s.execOne(ctx, "update trade", query, args)
}

// GetTrade retrieves a trade by id.
func (s *Store) GetTrade(ctx context.Context, id string) (*types.Trade, error) {
	query, args, err := s.sq.Select(tradeColumns...).From("trades").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get trade: %w", err)
	}

	trades, err := s.queryTrades(ctx, query, args)
	if err != nil {
		return nil, err
	}

	if len(trades) == 0 {
		return nil, storage.ErrNotFound
	}

	return trades[0], nil
}

// GetTradesByStatus retrieves trades of channel in any of statuses.
func (s *Store) GetTradesByStatus(ctx context.Context, channel string, statuses ...types.TradeStatus) ([]*types.Trade, error) {
	builder := s.sq.Select(tradeColumns...).From("trades").OrderBy("created_at ASC", "id ASC")
	if channel != "" {
		builder = builder.Where(squirrel.Eq{"channel": channel})
	}

	if len(statuses) > 0 {
		builder = builder.Where(squirrel.Eq{"status": storage.StatusStrings(statuses)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build trades by status: %w", err)
	}

	return s.queryTrades(ctx, query, args)
}

// GetActiveTrades retrieves pending and active trades of channel.
func (s *Store) GetActiveTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ActiveStatuses...)
}

// GetClosedTrades retrieves closed and stopped trades of channel.
func (s *Store) GetClosedTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ClosedStatuses...)
}

func (s *Store) queryTrades(ctx context.Context, query string, args []any) ([]*types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []*types.Trade

	for rows.Next() {
		var (
			trade                            types.Trade
			tps, status                      string
			createdAt                        int64
			entryFilled, exitFilled, expires sql.NullInt64
			exitPrice, pnl, pnlPct           sql.NullFloat64
		)

		if err := rows.Scan(
			&trade.ID, &trade.Channel, &trade.TradingPair, &trade.EntryPrice, &trade.StopLoss, &tps,
			&trade.Quantity, &trade.Leverage, &trade.RiskPercentage, &status, &createdAt,
			&entryFilled, &exitFilled, &exitPrice, &pnl, &pnlPct,
			&trade.StopLossBreakeven, &expires,
		); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		if err := json.Unmarshal([]byte(tps), &trade.TakeProfits); err != nil {
			return nil, fmt.Errorf("unmarshal take profits of %s: %w", trade.ID, err)
		}

		trade.Status = types.TradeStatus(status)
		trade.CreatedAt = fromNanos(createdAt)
		trade.EntryFilledAt = nullTime(entryFilled)
		trade.ExitFilledAt = nullTime(exitFilled)
		trade.ExpiresAt = nullTime(expires)
		trade.ExitPrice = nullFloat(exitPrice)
		trade.PnL = nullFloat(pnl)
		trade.PnLPercentage = nullFloat(pnlPct)
		trades = append(trades, &trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// InsertOrder adds a new order. Returns ErrDuplicateKey if the slot is taken.
func (s *Store) InsertOrder(ctx context.Context, order *types.Order) error {
	if err := storage.ValidateOrder(order); err != nil {
		return err
	}

	query, args, err := s.sq.Insert("orders").
		Columns(append([]string{"slot"}, orderColumns...)...).
		Values(
			order.Key(), order.ID, order.TradeID, string(order.OrderType), storage.ToPtr(order.TPIndex),
			order.Price, order.Quantity, string(order.Status),
			optionalNanos(order.FilledAt), storage.ToPtr(order.FilledPrice), toNanos(order.CreatedAt),
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert order: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}

		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// UpdateOrder overwrites the mutable fields of an order.
func (s *Store) UpdateOrder(ctx context.Context, order *types.Order) error {
	if err := storage.ValidateOrder(order); err != nil {
		return err
	}

	query, args, err := s.sq.Update("orders").SetMap(map[string]any{
		"price":        order.Price,
		"quantity":     order.Quantity,
		"status":       string(order.Status),
		"filled_at":    optionalNanos(order.FilledAt),
		"filled_price": storage.ToPtr(order.FilledPrice),
	}).Where(squirrel.Eq{"id": order.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update order: %w", err)
	}

	return s.execOne(ctx, "update order", query, args)
}

// GetOrdersByTradeID retrieves all orders of a trade, ordered by slot.
func (s *Store) GetOrdersByTradeID(ctx context.Context, tradeID string) ([]*types.Order, error) {
	query, args, err := s.sq.Select(orderColumns...).From("orders").Where(squirrel.Eq{"trade_id": tradeID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build orders by trade: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.Order

	for rows.Next() {
		var (
			order             types.Order
			orderType, status string
			tpIndex           sql.NullInt64
			filledAt          sql.NullInt64
			filledPrice       sql.NullFloat64
			createdAt         int64
		)

		if err := rows.Scan(
			&order.ID, &order.TradeID, &orderType, &tpIndex, &order.Price, &order.Quantity,
			&status, &filledAt, &filledPrice, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		order.OrderType = types.OrderType(orderType)
		order.Status = types.OrderStatus(status)
		order.TPIndex = optional.None[int]()

		if tpIndex.Valid {
			order.TPIndex = optional.Some(int(tpIndex.Int64))
		}

		order.FilledAt = nullTime(filledAt)
		order.FilledPrice = nullFloat(filledPrice)
		order.CreatedAt = fromNanos(createdAt)
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	storage.SortOrders(orders)

	return orders, nil
}

// InsertEvaluation appends an evaluation result.
func (s *Store) InsertEvaluation(ctx context.Context, record *types.EvaluationRecord) error {
	if record == nil || record.ID == "" {
		return storage.ErrInvalidInput
	}

	violations, err := json.Marshal(record.Result.Violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}

	metrics, err := json.Marshal(record.Result.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	query, args, err := s.sq.Insert("evaluation_results").Columns(evaluationColumns...).Values(
		record.ID, record.Channel, record.Result.PropFirmName, record.Result.Passed,
		string(violations), string(metrics),
		toNanos(record.Result.StartDate), toNanos(record.Result.EndDate), toNanos(record.CreatedAt),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert evaluation: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}

		return fmt.Errorf("insert evaluation: %w", err)
	}

	return nil
}

// GetEvaluations retrieves the evaluations of channel, ordered by created_at ASC.
func (s *Store) GetEvaluations(ctx context.Context, channel string) ([]*types.EvaluationRecord, error) {
	builder := s.sq.Select(evaluationColumns...).From("evaluation_results").OrderBy("created_at ASC", "id ASC")
	if channel != "" {
		builder = builder.Where(squirrel.Eq{"channel": channel})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build evaluations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var records []*types.EvaluationRecord

	for rows.Next() {
		var (
			record                        types.EvaluationRecord
			violations, metrics           string
			startDate, endDate, createdAt int64
		)

		if err := rows.Scan(
			&record.ID, &record.Channel, &record.Result.PropFirmName, &record.Result.Passed,
			&violations, &metrics, &startDate, &endDate, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}

		if err := json.Unmarshal([]byte(violations), &record.Result.Violations); err != nil {
			return nil, fmt.Errorf("unmarshal violations of %s: %w", record.ID, err)
		}

		if err := json.Unmarshal([]byte(metrics), &record.Result.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics of %s: %w", record.ID, err)
		}

		record.Result.StartDate = fromNanos(startDate)
		record.Result.EndDate = fromNanos(endDate)
		record.CreatedAt = fromNanos(createdAt)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return records, nil
}

func (s *Store) execOne(ctx context.Context, op, query string, args []any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}

	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// isDuplicateKeyError matches the constraint messages of both engines.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "primary key constraint")
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func optionalNanos(t optional.Option[time.Time]) *int64 {
	if t.IsNone() {
		return nil
	}

	n := toNanos(t.Unwrap())

	return &n
}

func nullTime(n sql.NullInt64) optional.Option[time.Time] {
	if !n.Valid {
		return optional.None[time.Time]()
	}

	return optional.Some(fromNanos(n.Int64))
}

func nullFloat(n sql.NullFloat64) optional.Option[float64] {
	if !n.Valid {
		return optional.None[float64]()
	}

	return optional.Some(n.Float64)
}
