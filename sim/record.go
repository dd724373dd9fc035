package sim

import (
	"time"

	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

// AllVolume as a close volume closes every opened lot of the code and side.
const AllVolume int64 = 0

// Tranche is the part of a trade applied to one position. Opens have a
// single tranche; closes have one per position consumed.
type Tranche struct {
	PositionID  string          `json:"position_id,omitempty"`
	CloseID     string          `json:"close_id,omitempty"`
	OpenPrice   decimal.Decimal `json:"open_price"`
	Volume      int64           `json:"volume"`
	Commission  market.Fee      `json:"commission"`
	Margin      decimal.Decimal `json:"margin"`
	PnL         decimal.Decimal `json:"pnl"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// TradeRecord is the outcome of one trade request. Money fields are nil
// when Success is false.
type TradeRecord struct {
	Date    time.Time        `json:"date"`
	Code    string           `json:"code"`
	Type    market.TradeType `json:"type"`
	Side    market.Side      `json:"side"`
	Price   decimal.Decimal  `json:"price"`
	Volume  int64            `json:"volume"`
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`

	SlippagePrice *decimal.Decimal `json:"slippage_price,omitempty"`
	Margin        *decimal.Decimal `json:"margin,omitempty"`
	Commissions   []market.Fee     `json:"commissions,omitempty"`
	Tranches      []Tranche        `json:"tranches,omitempty"`
	RealizedPnL   *decimal.Decimal `json:"realized_pnl,omitempty"`
	Account       *account.Log     `json:"account,omitempty"`

	cause error
}

func newRecord(now time.Time, code string, tt market.TradeType, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	return TradeRecord{Date: now, Code: code, Type: tt, Side: side, Price: price, Volume: volume}
}

// reject turns r into a failed record carrying err.
func (r TradeRecord) reject(err error) TradeRecord {
	r.Success = false
	r.Error = err.Error()
	r.SlippagePrice = nil
	r.Margin = nil
	r.Commissions = nil
	r.Tranches = nil
	r.RealizedPnL = nil
	r.Account = nil
	r.cause = err
	return r
}

// Cause is the error a rejected record failed with, for errors.Is.
func (r TradeRecord) Cause() error {
	return r.cause
}

// Commission is the total fee over all tranches.
func (r TradeRecord) Commission() decimal.Decimal {
	total := decimal.Zero
	for _, f := range r.Commissions {
		total = total.Add(f.Total)
	}
	return total
}

// PositionIDs lists the positions the trade touched.
func (r TradeRecord) PositionIDs() []string {
	var out []string
	for _, t := range r.Tranches {
		out = append(out, t.PositionID)
	}
	return out
}

// CloseIDs lists the closes a committed close appended.
func (r TradeRecord) CloseIDs() []string {
	var out []string
	for _, t := range r.Tranches {
		if t.CloseID != "" {
			out = append(out, t.CloseID)
		}
	}
	return out
}

// Journal converts the record to its journal row.
func (r TradeRecord) Journal(runID string) journal.TradeRecord {
	row := journal.TradeRecord{
		RunID:   runID,
		Time:    r.Date,
		Code:    r.Code,
		Type:    r.Type,
		Side:    r.Side,
		Price:   r.Price,
		Volume:  r.Volume,
		Success: r.Success,
		Error:   r.Error,
	}
	if !r.Success {
		return row
	}
	row.SlippagePrice = nullable(r.SlippagePrice)
	row.Margin = nullable(r.Margin)
	row.Commission = decimal.NewNullDecimal(r.Commission())
	row.RealizedPnL = nullable(r.RealizedPnL)
	return row
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
