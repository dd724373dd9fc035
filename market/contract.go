package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrContractNotFound = errors.New("contract not found")
	ErrContractExists   = errors.New("contract already exists")
	ErrInvalidContract  = errors.New("invalid contract")
)

// Contract is the static reference data of a futures instrument.
// It is immutable once built.
type Contract struct {
	code       string
	exchange   string
	commodity  string
	multiplier int64
	marginRate decimal.Decimal
	tickSize   decimal.Decimal
	commission Commission
}

// NewContract validates and builds a contract. A nil commission is free.
func NewContract(code, exchange, commodity string, multiplier int64, marginRate, tickSize decimal.Decimal, commission Commission) (*Contract, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidContract)
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("%w %s: multiplier must be positive", ErrInvalidContract, code)
	}
	if !marginRate.IsPositive() || marginRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w %s: margin rate must be in (0,1]", ErrInvalidContract, code)
	}
	if tickSize.IsNegative() {
		return nil, fmt.Errorf("%w %s: tick size must not be negative", ErrInvalidContract, code)
	}
	if commission == nil {
		commission = FreeCommission{}
	}
	return &Contract{
		code:       code,
		exchange:   exchange,
		commodity:  commodity,
		multiplier: multiplier,
		marginRate: marginRate,
		tickSize:   tickSize,
		commission: commission,
	}, nil
}

func (c *Contract) Code() string                { return c.code }
func (c *Contract) Exchange() string            { return c.exchange }
func (c *Contract) Commodity() string           { return c.commodity }
func (c *Contract) Multiplier() int64           { return c.multiplier }
func (c *Contract) MarginRate() decimal.Decimal { return c.marginRate }
func (c *Contract) TickSize() decimal.Decimal   { return c.tickSize }
func (c *Contract) Commission() Commission      { return c.commission }

func (c *Contract) Notional(price decimal.Decimal, volume int64) decimal.Decimal {
	return NotionalValue(price, volume, c.multiplier)
}

func (c *Contract) Margin(price decimal.Decimal, volume int64) decimal.Decimal {
	return ContractMargin(price, volume, c.multiplier, c.marginRate)
}

func (c *Contract) Fee(req FeeRequest) Fee {
	return c.commission.Fee(c, req)
}

// ContractState is the serialized form of a Contract.
type ContractState struct {
	Code       string           `json:"code"`
	Exchange   string           `json:"exchange"`
	Commodity  string           `json:"commodity"`
	Multiplier int64            `json:"multiplier"`
	MarginRate decimal.Decimal  `json:"margin_rate"`
	TickSize   decimal.Decimal  `json:"tick_size"`
	Commission CommissionConfig `json:"commission"`
}

func (c *Contract) State() ContractState {
	return ContractState{
		Code:       c.code,
		Exchange:   c.exchange,
		Commodity:  c.commodity,
		Multiplier: c.multiplier,
		MarginRate: c.marginRate,
		TickSize:   c.tickSize,
		Commission: c.commission.Config(),
	}
}

func ContractFromState(s ContractState) (*Contract, error) {
	comm, err := NewCommission(s.Commission)
	if err != nil {
		return nil, err
	}
	return NewContract(s.Code, s.Exchange, s.Commodity, s.Multiplier, s.MarginRate, s.TickSize, comm)
}
