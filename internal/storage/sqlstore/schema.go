package sqlstore

// Times are stored as unix nanoseconds so DuckDB and SQLite share one schema.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		trading_pair TEXT NOT NULL,
		entry_price DOUBLE NOT NULL,
		stop_loss DOUBLE NOT NULL,
		take_profits TEXT NOT NULL,
		quantity DOUBLE NOT NULL,
		leverage DOUBLE NOT NULL,
		risk_percentage DOUBLE NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		entry_filled_at BIGINT,
		exit_filled_at BIGINT,
		exit_price DOUBLE,
		pnl DOUBLE,
		pnl_percentage DOUBLE,
		stop_loss_breakeven BOOLEAN NOT NULL,
		expires_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_channel_status ON trades (channel, status)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		trade_id TEXT NOT NULL,
		slot TEXT NOT NULL,
		order_type TEXT NOT NULL,
		tp_index INTEGER,
		price DOUBLE NOT NULL,
		quantity DOUBLE NOT NULL,
		status TEXT NOT NULL,
		filled_at BIGINT,
		filled_price DOUBLE,
		created_at BIGINT NOT NULL,
		UNIQUE (trade_id, slot)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluation_results (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		prop_firm_name TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		violations TEXT NOT NULL,
		metrics TEXT NOT NULL,
		start_date BIGINT NOT NULL,
		end_date BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_results_channel ON evaluation_results (channel)`,
}
