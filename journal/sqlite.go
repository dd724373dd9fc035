package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradegym/market"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, time, code, type, side, price, volume, success, error, slippage_price, margin, commission, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Time, t.Code, string(t.Type), string(t.Side), t.Price, t.Volume, t.Success, t.Error,
		t.SlippagePrice, t.Margin, t.Commission, t.RealizedPnL,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, cash, margin_in_use, unrealized_pnl, available_cash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Cash, e.MarginInUse, e.UnrealizedPnL, e.AvailableCash,
	)
	return err
}

// ListTrades returns the trade attempts of a run in the order recorded.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, code, type, side, price, volume, success, error, slippage_price, margin, commission, realized_pnl
		FROM trades
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec      TradeRecord
			tt, side string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Time,
			&rec.Code,
			&tt,
			&side,
			&rec.Price,
			&rec.Volume,
			&rec.Success,
			&rec.Error,
			&rec.SlippagePrice,
			&rec.Margin,
			&rec.Commission,
			&rec.RealizedPnL,
		); err != nil {
			return nil, err
		}
		rec.Type = market.TradeType(tt)
		rec.Side = market.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns the equity curve of a run in time order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, cash, margin_in_use, unrealized_pnl, available_cash
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(
			&rec.RunID,
			&rec.Time,
			&rec.Cash,
			&rec.MarginInUse,
			&rec.UnrealizedPnL,
			&rec.AvailableCash,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRuns returns the run ids with journaled trades or equity, ordered by
// their earliest timestamp.
func (j *SQLite) ListRuns() ([]string, error) {
	rows, err := j.db.Query(`
		SELECT run_id FROM (
			SELECT run_id, MIN(time) AS first FROM trades GROUP BY run_id
			UNION ALL
			SELECT run_id, MIN(time) AS first FROM equity GROUP BY run_id
		)
		GROUP BY run_id
		ORDER BY MIN(first) ASC, run_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
