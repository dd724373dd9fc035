package account

import (
	"time"

	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

// Close is one partial or full exit from a Position. Immutable once
// appended.
type Close struct {
	ID             string          `json:"id"`
	Price          decimal.Decimal `json:"price"`
	Volume         int64           `json:"volume"`
	Commission     decimal.Decimal `json:"commission"`
	ReleasedMargin decimal.Decimal `json:"released_margin"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	Date           time.Time       `json:"date"`
}

// Position is a lot opened in one trade. It is never removed from the
// portfolio; it turns closed once its closes add up to the open volume.
type Position struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Side           market.Side     `json:"side"`
	OpenPrice      decimal.Decimal `json:"open_price"`
	OpenVolume     int64           `json:"open_volume"`
	OpenCommission decimal.Decimal `json:"open_commission"`
	OpenMargin     decimal.Decimal `json:"open_margin"`
	OpenDate       time.Time       `json:"open_date"`
	Closes         []Close         `json:"closes,omitempty"`
}

func (p *Position) ClosedVolume() int64 {
	var v int64
	for _, c := range p.Closes {
		v += c.Volume
	}
	return v
}

func (p *Position) CurrentVolume() int64 {
	return p.OpenVolume - p.ClosedVolume()
}

func (p *Position) Status() market.Status {
	if p.CurrentVolume() > 0 {
		return market.Opened
	}
	return market.Closed
}

// TotalCommission is the open commission plus every close commission.
func (p *Position) TotalCommission() decimal.Decimal {
	total := p.OpenCommission
	for _, c := range p.Closes {
		total = total.Add(c.Commission)
	}
	return total
}

func (p *Position) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Closes {
		total = total.Add(c.RealizedPnL)
	}
	return total
}

func (p *Position) ReleasedMargin() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Closes {
		total = total.Add(c.ReleasedMargin)
	}
	return total
}

// RemainingMargin is the margin still reserved for the open volume.
func (p *Position) RemainingMargin() decimal.Decimal {
	return p.OpenMargin.Sub(p.ReleasedMargin())
}

// UnrealizedPnL values the open volume at last.
func (p *Position) UnrealizedPnL(last decimal.Decimal, multiplier int64) decimal.Decimal {
	return market.UnrealizedPnL(p.Side, p.OpenPrice, last, p.CurrentVolume(), multiplier)
}

func (p *Position) clone() Position {
	cp := *p
	if p.Closes != nil {
		cp.Closes = make([]Close, len(p.Closes))
		copy(cp.Closes, p.Closes)
	}
	return cp
}
