// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type tradeRow struct {
	RunID         string `csv:"run_id"`
	Time          string `csv:"time"`
	Code          string `csv:"code"`
	Type          string `csv:"type"`
	Side          string `csv:"side"`
	Price         string `csv:"price"`
	Volume        int64  `csv:"volume"`
	Success       bool   `csv:"success"`
	Error         string `csv:"error"`
	SlippagePrice string `csv:"slippage_price"`
	Margin        string `csv:"margin"`
	Commission    string `csv:"commission"`
	RealizedPnL   string `csv:"realized_pnl"`
}

type equityRow struct {
	RunID         string `csv:"run_id"`
	Time          string `csv:"time"`
	Cash          string `csv:"cash"`
	MarginInUse   string `csv:"margin_in_use"`
	UnrealizedPnL string `csv:"unrealized_pnl"`
	AvailableCash string `csv:"available_cash"`
}

// CSVJournal writes trade attempts and equity snapshots to two files,
// flushing after every record.
type CSVJournal struct {
	trades *gocsv.SafeCSVWriter
	equity *gocsv.SafeCSVWriter
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	j := &CSVJournal{
		trades: gocsv.NewSafeCSVWriter(csv.NewWriter(tf)),
		equity: gocsv.NewSafeCSVWriter(csv.NewWriter(ef)),
		tf:     tf,
		ef:     ef,
	}

	// header only
	if err := gocsv.MarshalCSV([]tradeRow{}, j.trades); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := gocsv.MarshalCSV([]equityRow{}, j.equity); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	row := tradeRow{
		RunID:         t.RunID,
		Time:          t.Time.Format(time.RFC3339Nano),
		Code:          t.Code,
		Type:          string(t.Type),
		Side:          string(t.Side),
		Price:         t.Price.String(),
		Volume:        t.Volume,
		Success:       t.Success,
		Error:         t.Error,
		SlippagePrice: nullString(t.SlippagePrice),
		Margin:        nullString(t.Margin),
		Commission:    nullString(t.Commission),
		RealizedPnL:   nullString(t.RealizedPnL),
	}
	return gocsv.MarshalCSVWithoutHeaders([]tradeRow{row}, j.trades)
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	row := equityRow{
		RunID:         e.RunID,
		Time:          e.Time.Format(time.RFC3339Nano),
		Cash:          e.Cash.String(),
		MarginInUse:   e.MarginInUse.String(),
		UnrealizedPnL: e.UnrealizedPnL.String(),
		AvailableCash: e.AvailableCash.String(),
	}
	return gocsv.MarshalCSVWithoutHeaders([]equityRow{row}, j.equity)
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
