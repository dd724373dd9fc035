// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

// TradeRecord is one trade attempt, accepted or rejected. Money fields
// are null on rejections.
type TradeRecord struct {
	RunID         string
	Time          time.Time
	Code          string
	Type          market.TradeType
	Side          market.Side
	Price         decimal.Decimal
	Volume        int64
	Success       bool
	Error         string
	SlippagePrice decimal.NullDecimal
	Margin        decimal.NullDecimal
	Commission    decimal.NullDecimal
	RealizedPnL   decimal.NullDecimal
}

// EquitySnapshot is the account after a clock step.
type EquitySnapshot struct {
	RunID         string
	Time          time.Time
	Cash          decimal.Decimal
	MarginInUse   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	AvailableCash decimal.Decimal
}

// Equity is cash plus reserved margin plus floating PnL.
func (e EquitySnapshot) Equity() decimal.Decimal {
	return e.Cash.Add(e.MarginInUse).Add(e.UnrealizedPnL)
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Discard drops everything.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordTrade(TradeRecord) error     { return nil }
func (discard) RecordEquity(EquitySnapshot) error { return nil }
func (discard) Close() error                      { return nil }
