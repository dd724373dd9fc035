// journal/schema.go
package journal

// Money columns are TEXT holding exact decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	code TEXT NOT NULL,
	type TEXT NOT NULL,
	side TEXT NOT NULL,
	price TEXT NOT NULL,
	volume INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL,
	slippage_price TEXT,
	margin TEXT,
	commission TEXT,
	realized_pnl TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, id);

CREATE TABLE IF NOT EXISTS equity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	margin_in_use TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL,
	available_cash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
`
