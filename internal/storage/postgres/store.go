package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

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

// InsertTrade adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *Store) InsertTrade(ctx context.Context, trade *types.Trade) error {
	if err := storage.ValidateTrade(trade); err != nil {
		return err
	}

	tps, err := json.Marshal(trade.TakeProfits)
	if err != nil {
		return fmt.Errorf("marshal take profits: %w", err)
	}

	query, args, err := psql.Insert("trades").Columns(tradeColumns...).Values(
		trade.ID, trade.Channel, trade.TradingPair, trade.EntryPrice, trade.StopLoss, string(tps),
		trade.Quantity, trade.Leverage, trade.RiskPercentage, string(trade.Status), trade.CreatedAt.UTC(),
		storage.ToPtr(trade.EntryFilledAt), storage.ToPtr(trade.ExitFilledAt),
		storage.ToPtr(trade.ExitPrice), storage.ToPtr(trade.PnL), storage.ToPtr(trade.PnLPercentage),
		trade.StopLossBreakeven, storage.ToPtr(trade.ExpiresAt),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert trade: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
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

	query, args, err := psql.Update("trades").SetMap(map[string]any{
		"stop_loss":           trade.StopLoss,
		"quantity":            trade.Quantity,
		"status":              string(trade.Status),
		"entry_filled_at":     storage.ToPtr(trade.EntryFilledAt),
		"exit_filled_at":      storage.ToPtr(trade.ExitFilledAt),
		"exit_price":          storage.ToPtr(trade.ExitPrice),
		"pnl":                 storage.ToPtr(trade.PnL),
		"pnl_percentage":      storage.ToPtr(trade.PnLPercentage),
		"stop_loss_breakeven": trade.StopLossBreakeven,
		"expires_at":          storage.ToPtr(trade.ExpiresAt),
	}).Where(squirrel.Eq{"id": trade.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update trade: %w", err)
	}

	return execOne(ctx, s.pool, "update trade", query, args...)
}

// GetTrade retrieves a trade by id.
func (s *Store) GetTrade(ctx context.Context, id string) (*types.Trade, error) {
	query, args, err := psql.Select(tradeColumns...).From("trades").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get trade: %w", err)
	}

	trade, err := scanTrade(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return trade, nil
}

// GetTradesByStatus retrieves trades of channel in any of statuses.
func (s *Store) GetTradesByStatus(ctx context.Context, channel string, statuses ...types.TradeStatus) ([]*types.Trade, error) {
	builder := psql.Select(tradeColumns...).From("trades").OrderBy("created_at ASC", "id ASC")
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

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []*types.Trade

	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// GetActiveTrades retrieves pending and active trades of channel.
func (s *Store) GetActiveTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ActiveStatuses...)
}

// GetClosedTrades retrieves closed and stopped trades of channel.
func (s *Store) GetClosedTrades(ctx context.Context, channel string) ([]*types.Trade, error) {
	return s.GetTradesByStatus(ctx, channel, storage.ClosedStatuses...)
}

func scanTrade(row pgx.Row) (*types.Trade, error) {
	var (
		trade                            types.Trade
		tps                              []byte
		status                           string
		createdAt                        time.Time
		entryFilled, exitFilled, expires *time.Time
		exitPrice, pnl, pnlPct           *float64
	)

	if err := row.Scan(
		&trade.ID, &trade.Channel, &trade.TradingPair, &trade.EntryPrice, &trade.StopLoss, &tps,
		&trade.Quantity, &trade.Leverage, &trade.RiskPercentage, &status, &createdAt,
		&entryFilled, &exitFilled, &exitPrice, &pnl, &pnlPct,
		&trade.StopLossBreakeven, &expires,
	); err != nil {
		if isNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("scan trade row: %w", err)
	}

	if err := json.Unmarshal(tps, &trade.TakeProfits); err != nil {
		return nil, fmt.Errorf("unmarshal take profits of %s: %w", trade.ID, err)
	}

	trade.Status = types.TradeStatus(status)
	trade.CreatedAt = createdAt.UTC()
	trade.EntryFilledAt = utcOption(entryFilled)
	trade.ExitFilledAt = utcOption(exitFilled)
	trade.ExpiresAt = utcOption(expires)
	trade.ExitPrice = storage.FromPtr(exitPrice)
	trade.PnL = storage.FromPtr(pnl)
	trade.PnLPercentage = storage.FromPtr(pnlPct)

	return &trade, nil
}

// InsertOrder adds a new order. Returns ErrDuplicateKey if the slot is taken.
func (s *Store) InsertOrder(ctx context.Context, order *types.Order) error {
	if err := storage.ValidateOrder(order); err != nil {
		return err
	}

	query, args, err := psql.Insert("orders").
		Columns(append([]string{"slot"}, orderColumns...)...).
		Values(
			order.Key(), order.ID, order.TradeID, string(order.OrderType), storage.ToPtr(order.TPIndex),
			order.Price, order.Quantity, string(order.Status),
			storage.ToPtr(order.FilledAt), storage.ToPtr(order.FilledPrice), order.CreatedAt.UTC(),
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert order: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
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

	query, args, err := psql.Update("orders").SetMap(map[string]any{
		"price":        order.Price,
		"quantity":     order.Quantity,
		"status":       string(order.Status),
		"filled_at":    storage.ToPtr(order.FilledAt),
		"filled_price": storage.ToPtr(order.FilledPrice),
	}).Where(squirrel.Eq{"id": order.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update order: %w", err)
	}

	return execOne(ctx, s.pool, "update order", query, args...)
}

// GetOrdersByTradeID retrieves all orders of a trade, ordered by slot.
func (s *Store) GetOrdersByTradeID(ctx context.Context, tradeID string) ([]*types.Order, error) {
	query, args, err := psql.Select(orderColumns...).From("orders").Where(squirrel.Eq{"trade_id": tradeID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build orders by trade: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.Order

	for rows.Next() {
		var (
			order             types.Order
			orderType, status string
			tpIndex           *int32
			filledAt          *time.Time
			filledPrice       *float64
			createdAt         time.Time
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

		if tpIndex != nil {
			order.TPIndex = optional.Some(int(*tpIndex))
		}

		order.FilledAt = utcOption(filledAt)
		order.FilledPrice = storage.FromPtr(filledPrice)
		order.CreatedAt = createdAt.UTC()
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

	query, args, err := psql.Insert("evaluation_results").Columns(evaluationColumns...).Values(
		record.ID, record.Channel, record.Result.PropFirmName, record.Result.Passed,
		string(violations), string(metrics),
		record.Result.StartDate.UTC(), record.Result.EndDate.UTC(), record.CreatedAt.UTC(),
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert evaluation: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}

		return fmt.Errorf("insert evaluation: %w", err)
	}

	return nil
}

// GetEvaluations retrieves the evaluations of channel, ordered by created_at ASC.
func (s *Store) GetEvaluations(ctx context.Context, channel string) ([]*types.EvaluationRecord, error) {
	builder := psql.Select(evaluationColumns...).From("evaluation_results").OrderBy("created_at ASC", "id ASC")
	if channel != "" {
		builder = builder.Where(squirrel.Eq{"channel": channel})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build evaluations: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var records []*types.EvaluationRecord

	for rows.Next() {
		var (
			record                        types.EvaluationRecord
			violations, metrics           []byte
			startDate, endDate, createdAt time.Time
		)

		if err := rows.Scan(
			&record.ID, &record.Channel, &record.Result.PropFirmName, &record.Result.Passed,
			&violations, &metrics, &startDate, &endDate, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}

		if err := json.Unmarshal(violations, &record.Result.Violations); err != nil {
			return nil, fmt.Errorf("unmarshal violations of %s: %w", record.ID, err)
		}

		if err := json.Unmarshal(metrics, &record.Result.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics of %s: %w", record.ID, err)
		}

		record.Result.StartDate = startDate.UTC()
		record.Result.EndDate = endDate.UTC()
		record.CreatedAt = createdAt.UTC()
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return records, nil
}

func utcOption(t *time.Time) optional.Option[time.Time] {
	if t == nil {
		return optional.None[time.Time]()
	}

	return optional.Some(t.UTC())
}
