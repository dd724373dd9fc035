package sim

import (
	"fmt"

	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

// Env is what a trader reads and mutates.
type Env struct {
	Clock     *Clock
	KLines    *kline.Manager
	Contracts *market.Registry
	Account   *account.Account
}

// Trader validates and commits trade requests. Try* never mutate; Open and
// Close mutate the ledger only when validation succeeds. A rejected request
// comes back as a failed TradeRecord, never as a Go error.
type Trader interface {
	Name() string
	Bind(env Env)
	Config() TraderConfig

	TryOpen(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord
	TryClose(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord
	Open(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord
	Close(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord
}

const CTPTraderName = "ctp"

// TraderConfig is the serialized form of a Trader.
type TraderConfig struct {
	Name       string          `json:"name"`
	PriceField string          `json:"price_field"`
	Slippage   decimal.Decimal `json:"slippage"`
}

// NewTrader builds the trader named by cfg. An empty name is ctp.
func NewTrader(cfg TraderConfig) (Trader, error) {
	switch cfg.Name {
	case "", CTPTraderName:
		if cfg.PriceField == "" {
			return nil, fmt.Errorf("%w: ctp trader needs a price field", ErrMissingPriceField)
		}
		return &CTPTrader{PriceField: cfg.PriceField, Slippage: cfg.Slippage}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownTrader, cfg.Name)
}

// CTPTrader fills at the requested price as long as it is within Slippage
// ticks of the driver series' PriceField.
type CTPTrader struct {
	PriceField string
	Slippage   decimal.Decimal

	env Env
}

func (t *CTPTrader) Name() string { return CTPTraderName }
func (t *CTPTrader) Bind(env Env) { t.env = env }

func (t *CTPTrader) Config() TraderConfig {
	return TraderConfig{Name: CTPTraderName, PriceField: t.PriceField, Slippage: t.Slippage}
}

// ReferencePrice is the PriceField of the current quote of code's driver
// series.
func (t *CTPTrader) ReferencePrice(code string) (decimal.Decimal, error) {
	s, err := t.env.KLines.Driver(code)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := s.Quote()
	if err != nil {
		return decimal.Zero, err
	}
	v, ok := q.Get(t.PriceField)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %q for %s at %s", ErrMissingPriceField, t.PriceField, code, q.Time)
	}
	return v, nil
}

func (t *CTPTrader) slippagePrice(c *market.Contract, tt market.TradeType, side market.Side, price decimal.Decimal) (decimal.Decimal, error) {
	ref, err := t.ReferencePrice(c.Code())
	if err != nil {
		return decimal.Zero, err
	}
	slip := market.SlippagePrice(ref, c.TickSize(), t.Slippage, tt, side)
	if !market.WithinSlippage(price, slip, tt, side) {
		return decimal.Zero, fmt.Errorf("%w: %s %s at %s, allowed %s", ErrSlippageRejected, tt, side, price, slip)
	}
	return slip, nil
}

func (t *CTPTrader) TryOpen(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	rec := newRecord(t.env.Clock.Now(), code, market.Open, side, price, volume)

	if !side.Valid() {
		return rec.reject(fmt.Errorf("%w %q", account.ErrInvalidSide, side))
	}
	if volume <= 0 {
		return rec.reject(fmt.Errorf("%w: open %d", ErrInvalidVolume, volume))
	}
	c, err := t.env.Contracts.Get(code)
	if err != nil {
		return rec.reject(err)
	}

	slip, err := t.slippagePrice(c, market.Open, side, price)
	if err != nil {
		return rec.reject(err)
	}

	fee := c.Fee(market.FeeRequest{
		Price:  price,
		Volume: volume,
		Type:   market.Open,
		Side:   side,
		Now:    rec.Date,
	})
	margin := c.Margin(price, volume)

	wallet := t.env.Account.Wallet
	if required := margin.Add(fee.Total); !wallet.HasEnoughAvailableCash(required) {
		return rec.reject(fmt.Errorf("%w: available %s, required %s", ErrInsufficientFunds, wallet.AvailableCash(), required))
	}

	rec.Success = true
	rec.SlippagePrice = ptr(slip)
	rec.Margin = ptr(margin)
	rec.Commissions = []market.Fee{fee}
	rec.Tranches = []Tranche{{
		OpenPrice:  price,
		Volume:     volume,
		Commission: fee,
		Margin:     margin,
	}}
	return rec
}

func (t *CTPTrader) TryClose(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	rec := newRecord(t.env.Clock.Now(), code, market.Close, side, price, volume)

	if !side.Valid() {
		return rec.reject(fmt.Errorf("%w %q", account.ErrInvalidSide, side))
	}
	if volume < 0 {
		return rec.reject(fmt.Errorf("%w: close %d", ErrInvalidVolume, volume))
	}
	c, err := t.env.Contracts.Get(code)
	if err != nil {
		return rec.reject(err)
	}

	positions := t.env.Account.Portfolio.Opened(code, side)
	var available int64
	for _, p := range positions {
		available += p.CurrentVolume()
	}
	if volume == AllVolume {
		volume = available
		rec.Volume = volume
	}
	if volume == 0 || available < volume {
		return rec.reject(fmt.Errorf("%w: %s %s has %d, close %d", account.ErrInsufficientVolume, code, side, available, volume))
	}

	slip, err := t.slippagePrice(c, market.Close, side, price)
	if err != nil {
		return rec.reject(err)
	}

	var (
		remaining   = volume
		totalMargin = decimal.Zero
		totalPnL    = decimal.Zero
	)
	for _, p := range positions {
		if remaining == 0 {
			break
		}
		v := min(remaining, p.CurrentVolume())
		remaining -= v

		fee := c.Fee(market.FeeRequest{
			Price:    price,
			Volume:   v,
			Type:     market.Close,
			Side:     side,
			Now:      rec.Date,
			OpenDate: p.OpenDate,
		})
		margin := c.Margin(p.OpenPrice, v)
		if v == p.CurrentVolume() {
			// last lots release whatever is still reserved, so rounding
			// never strands margin on a closed position
			margin = p.RemainingMargin()
		}
		pnl := market.UnrealizedPnL(side, p.OpenPrice, price, v, c.Multiplier())

		rec.Commissions = append(rec.Commissions, fee)
		rec.Tranches = append(rec.Tranches, Tranche{
			PositionID:  p.ID,
			OpenPrice:   p.OpenPrice,
			Volume:      v,
			Commission:  fee,
			Margin:      margin,
			PnL:         pnl,
			RealizedPnL: pnl.Sub(fee.Total),
		})
		totalMargin = totalMargin.Add(margin)
		totalPnL = totalPnL.Add(pnl.Sub(fee.Total))
	}

	rec.Success = true
	rec.SlippagePrice = ptr(slip)
	rec.Margin = ptr(totalMargin)
	rec.RealizedPnL = ptr(totalPnL)
	return rec
}

func (t *CTPTrader) Open(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	rec := t.TryOpen(code, side, price, volume)
	if !rec.Success {
		return rec
	}

	tr := &rec.Tranches[0]
	pid, err := t.env.Account.Portfolio.Open(code, side, price, volume, tr.Commission.Total, tr.Margin, rec.Date)
	if err != nil {
		// inputs were validated above; nothing has been mutated yet
		return rec.reject(err)
	}
	tr.PositionID = pid
	t.env.Account.Wallet.AllocateMargin(tr.Margin, tr.Commission.Total)

	log := t.env.Account.Log()
	rec.Account = &log
	return rec
}

func (t *CTPTrader) Close(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	rec := t.TryClose(code, side, price, volume)
	if !rec.Success {
		return rec
	}

	portfolio := t.env.Account.Portfolio
	var (
		margin     = decimal.Zero
		pnl        = decimal.Zero
		commission = decimal.Zero
	)
	for i := range rec.Tranches {
		tr := &rec.Tranches[i]
		cid, err := portfolio.Close(tr.PositionID, price, tr.Volume, tr.Commission.Total, tr.RealizedPnL, tr.Margin, rec.Date)
		if err != nil {
			// TryClose sized every tranche from the same portfolio state
			panic(fmt.Sprintf("close tranche %d of %s: %v", i, tr.PositionID, err))
		}
		tr.CloseID = cid
		margin = margin.Add(tr.Margin)
		pnl = pnl.Add(tr.PnL)
		commission = commission.Add(tr.Commission.Total)
	}
	t.env.Account.Wallet.ReleaseMargin(margin, pnl, commission)

	log := t.env.Account.Log()
	rec.Account = &log
	return rec
}
