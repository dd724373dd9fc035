package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownCommission = errors.New("unknown commission")

const (
	FreeCommissionName = "free"
	CTPCommissionName  = "ctp"
)

// Fee is the breakdown of a single commission charge.
type Fee struct {
	Exchange decimal.Decimal `json:"exchange_fee"`
	Broker   decimal.Decimal `json:"broker_fee"`
	Total    decimal.Decimal `json:"total_fee"`
}

func NewFee(exchange, broker decimal.Decimal) Fee {
	return Fee{Exchange: exchange, Broker: broker, Total: exchange.Add(broker)}
}

// FeeRequest describes the trade a commission is charged for. OpenDate is
// the open date of the position being closed and is zero for opens.
type FeeRequest struct {
	Price    decimal.Decimal
	Volume   int64
	Type     TradeType
	Side     Side
	Now      time.Time
	OpenDate time.Time
}

// Commission computes the fee of a trade on a contract.
type Commission interface {
	Name() string
	Fee(c *Contract, req FeeRequest) Fee
	Config() CommissionConfig
}

// FeeSchedule is one party's (exchange or broker) fee table. Fees are per
// lot, rates apply to notional value. The *Today pair applies to positions
// closed on the calendar day they were opened.
type FeeSchedule struct {
	OpenFee        decimal.Decimal `json:"open_fee"`
	OpenRate       decimal.Decimal `json:"open_rate"`
	CloseFee       decimal.Decimal `json:"close_fee"`
	CloseRate      decimal.Decimal `json:"close_rate"`
	CloseTodayFee  decimal.Decimal `json:"close_today_fee"`
	CloseTodayRate decimal.Decimal `json:"close_today_rate"`
}

func (s FeeSchedule) charge(notional decimal.Decimal, volume int64, tt TradeType, sameDay bool) decimal.Decimal {
	fee, rate := s.OpenFee, s.OpenRate
	if tt == Close {
		fee, rate = s.CloseFee, s.CloseRate
		if sameDay {
			fee, rate = s.CloseTodayFee, s.CloseTodayRate
		}
	}
	return fee.Mul(decimal.NewFromInt(volume)).Add(notional.Mul(rate))
}

// CommissionConfig is the serialized form of a Commission.
type CommissionConfig struct {
	Name     string      `json:"name"`
	Exchange FeeSchedule `json:"exchange"`
	Broker   FeeSchedule `json:"broker"`
}

// NewCommission builds the strategy named by cfg. An empty name is free.
func NewCommission(cfg CommissionConfig) (Commission, error) {
	switch cfg.Name {
	case "", FreeCommissionName:
		return FreeCommission{}, nil
	case CTPCommissionName:
		return &CTPCommission{Exchange: cfg.Exchange, Broker: cfg.Broker}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownCommission, cfg.Name)
}

// FreeCommission never charges.
type FreeCommission struct{}

func (FreeCommission) Name() string { return FreeCommissionName }

func (FreeCommission) Fee(*Contract, FeeRequest) Fee {
	return NewFee(decimal.Zero, decimal.Zero)
}

func (FreeCommission) Config() CommissionConfig {
	return CommissionConfig{Name: FreeCommissionName}
}

// CTPCommission is the exchange + broker tiered model used by Chinese
// futures brokers: a per-lot fee plus a notional rate for each party, with
// separate close rates for same-day and overnight positions.
type CTPCommission struct {
	Exchange FeeSchedule
	Broker   FeeSchedule
}

func (*CTPCommission) Name() string { return CTPCommissionName }

func (m *CTPCommission) Fee(c *Contract, req FeeRequest) Fee {
	notional := c.Notional(req.Price, req.Volume)
	sameDay := req.Type == Close && SameDay(req.Now, req.OpenDate)
	return NewFee(
		m.Exchange.charge(notional, req.Volume, req.Type, sameDay),
		m.Broker.charge(notional, req.Volume, req.Type, sameDay),
	)
}

func (m *CTPCommission) Config() CommissionConfig {
	return CommissionConfig{Name: CTPCommissionName, Exchange: m.Exchange, Broker: m.Broker}
}

// SameDay compares calendar dates in now's location.
func SameDay(now, then time.Time) bool {
	if then.IsZero() {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := then.In(now.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
