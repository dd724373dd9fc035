package sim

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rb = "SHFE.rb2405"

var epoch = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

type testJournal struct {
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
	closed bool
}

func (j *testJournal) RecordTrade(rec journal.TradeRecord) error {
	j.trades = append(j.trades, rec)
	return nil
}

func (j *testJournal) RecordEquity(rec journal.EquitySnapshot) error {
	j.equity = append(j.equity, rec)
	return nil
}

func (j *testJournal) Close() error {
	j.closed = true
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setup describes a one-instrument engine. Zero fields take defaults:
// 10000 cash, free commission, no slippage, one-second steps.
type setup struct {
	cash     string
	comm     market.Commission
	slippage string
	step     time.Duration
	prices   []string
}

// series builds one row per price, step apart, starting at epoch.
func series(step time.Duration, prices ...string) []kline.Row {
	out := make([]kline.Row, 0, len(prices))
	for i, p := range prices {
		out = append(out, kline.Row{
			Time:   epoch.Add(time.Duration(i) * step),
			Fields: map[string]decimal.Decimal{"last_price": d(p)},
		})
	}
	return out
}

func newTestEngine(t *testing.T, s setup) (*Engine, *testJournal) {
	t.Helper()
	if s.cash == "" {
		s.cash = "10000"
	}
	if s.slippage == "" {
		s.slippage = "0"
	}
	if s.step == 0 {
		s.step = time.Second
	}

	c, err := market.NewContract(rb, "SHFE", "rebar", 10, d("0.13"), d("1"), s.comm)
	require.NoError(t, err)
	contracts, err := market.NewRegistry(c)
	require.NoError(t, err)

	ser, err := kline.NewSeries(rb, s.step)
	require.NoError(t, err)
	klines, err := kline.NewManager(ser)
	require.NoError(t, err)

	clock, err := NewClock(time.Time{}, s.step)
	require.NoError(t, err)

	j := &testJournal{}
	e, err := NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   account.New(d(s.cash), "CNY", 1),
		Trader:    &CTPTrader{PriceField: "last_price", Slippage: d(s.slippage)},
		Journal:   j,
		RunID:     "test-run",
	})
	require.NoError(t, err)

	require.NoError(t, e.Activate([][]kline.Row{series(s.step, s.prices...)}))
	require.NoError(t, e.Reset())
	return e, j
}

// ledger is the JSON of the account, for before/after comparisons.
func ledger(t *testing.T, e *Engine) string {
	t.Helper()
	b, err := json.Marshal(e.Account().State())
	require.NoError(t, err)
	return string(b)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestEngineOpenCloseScenario(t *testing.T) {
	e, _ := newTestEngine(t, setup{prices: []string{"3500", "3510"}})

	open := e.Open(rb, market.Long, d("3500"), 1)
	require.True(t, open.Success, open.Error)
	assertDecimal(t, "4550", *open.Margin)

	w := e.Account().Wallet
	assertDecimal(t, "5450", w.Cash())
	assertDecimal(t, "4550", w.MarginInUse())

	require.NoError(t, e.Tick())

	closed := e.Close(rb, market.Long, d("3510"), 1)
	require.True(t, closed.Success, closed.Error)
	assertDecimal(t, "100", *closed.RealizedPnL)
	assertDecimal(t, "10100", w.Cash())
	assertDecimal(t, "0", w.MarginInUse())

	require.NotNil(t, closed.Account)
	assertDecimal(t, "10100", closed.Account.AvailableCash)
	assertDecimal(t, "0", closed.Account.UnrealizedPnL)
}

func TestEngineRoundTripConservesCash(t *testing.T) {
	e, _ := newTestEngine(t, setup{prices: []string{"3500", "3500", "3500"}})
	before := e.Account().Wallet.Cash()

	for _, side := range []market.Side{market.Long, market.Short} {
		rec := e.Open(rb, side, d("3500"), 2)
		require.True(t, rec.Success, rec.Error)
		rec = e.Close(rb, side, d("3500"), AllVolume)
		require.True(t, rec.Success, rec.Error)
		assert.Equal(t, int64(2), rec.Volume)
	}

	w := e.Account().Wallet
	assert.True(t, before.Equal(w.Cash()), "cash %s", w.Cash())
	assert.True(t, w.MarginInUse().IsZero())
}

func TestEngineRejectionsLeaveLedgerUntouched(t *testing.T) {
	e, j := newTestEngine(t, setup{cash: "6000", slippage: "1", prices: []string{"3500", "3500"}})

	seed := e.Open(rb, market.Long, d("3501"), 1)
	require.True(t, seed.Success, seed.Error)

	tests := []struct {
		name string
		do   func() TradeRecord
		want error
	}{
		{"open below slippage", func() TradeRecord { return e.Open(rb, market.Long, d("3500"), 1) }, ErrSlippageRejected},
		{"open short above slippage", func() TradeRecord { return e.Open(rb, market.Short, d("3500"), 1) }, ErrSlippageRejected},
		{"open beyond funds", func() TradeRecord { return e.Open(rb, market.Long, d("3510"), 1) }, ErrInsufficientFunds},
		{"open zero volume", func() TradeRecord { return e.Open(rb, market.Long, d("3510"), 0) }, ErrInvalidVolume},
		{"open bad side", func() TradeRecord { return e.Open(rb, market.Side("flat"), d("3510"), 1) }, account.ErrInvalidSide},
		{"open unknown contract", func() TradeRecord { return e.Open("DCE.i2405", market.Long, d("800"), 1) }, market.ErrContractNotFound},
		{"close more than open", func() TradeRecord { return e.Close(rb, market.Long, d("3499"), 2) }, account.ErrInsufficientVolume},
		{"close side with nothing open", func() TradeRecord { return e.Close(rb, market.Short, d("3501"), AllVolume) }, account.ErrInsufficientVolume},
		{"close above slippage", func() TradeRecord { return e.Close(rb, market.Long, d("3500"), 1) }, ErrSlippageRejected},
		{"close negative volume", func() TradeRecord { return e.Close(rb, market.Long, d("3499"), -1) }, ErrInvalidVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ledger(t, e)
			journaled := len(j.trades)

			rec := tt.do()

			assert.False(t, rec.Success)
			assert.NotEmpty(t, rec.Error)
			assert.True(t, errors.Is(rec.Cause(), tt.want), "cause = %v", rec.Cause())
			assert.Nil(t, rec.Margin)
			assert.Nil(t, rec.Tranches)
			assert.Nil(t, rec.Account)
			assert.JSONEq(t, before, ledger(t, e))

			require.Len(t, j.trades, journaled+1)
			row := j.trades[journaled]
			assert.False(t, row.Success)
			assert.Equal(t, rec.Error, row.Error)
			assert.False(t, row.Margin.Valid)
		})
	}
}

func TestEngineFundsCheckIncludesCommission(t *testing.T) {
	comm := &market.CTPCommission{
		Exchange: market.FeeSchedule{OpenRate: d("0.0001")},
		Broker:   market.FeeSchedule{OpenFee: d("1")},
	}
	// margin 4550 plus fee 4.5
	e, _ := newTestEngine(t, setup{cash: "4554", comm: comm, prices: []string{"3500", "3500"}})

	rec := e.Open(rb, market.Long, d("3500"), 1)
	assert.False(t, rec.Success)
	assert.ErrorIs(t, rec.Cause(), ErrInsufficientFunds)

	e2, _ := newTestEngine(t, setup{cash: "4554.5", comm: comm, prices: []string{"3500", "3500"}})
	rec = e2.Open(rb, market.Long, d("3500"), 1)
	require.True(t, rec.Success, rec.Error)
	assert.True(t, e2.Account().Wallet.Cash().IsZero())
}

func TestEngineRevaluation(t *testing.T) {
	e, j := newTestEngine(t, setup{prices: []string{"3500", "3490", "3520"}})
	w := e.Account().Wallet

	_, ok := w.UnrealizedPnLOf(rb)
	assert.False(t, ok)

	require.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)
	pnl, ok := w.UnrealizedPnLOf(rb)
	require.True(t, ok, "zero floating PnL is still recorded")
	assert.True(t, pnl.IsZero())

	require.NoError(t, e.Tick())
	assertDecimal(t, "-100", w.UnrealizedPnL())
	assertDecimal(t, "5350", w.AvailableCash())

	require.NoError(t, e.Tick())
	assertDecimal(t, "200", w.UnrealizedPnL())

	last := j.equity[len(j.equity)-1]
	assert.Equal(t, epoch.Add(2*time.Second), last.Time)
	assertDecimal(t, "200", last.UnrealizedPnL)
	assertDecimal(t, "10200", last.Equity())

	require.True(t, e.Close(rb, market.Long, d("3520"), AllVolume).Success)
	_, ok = w.UnrealizedPnLOf(rb)
	assert.False(t, ok)
}

func TestEngineCloseAll(t *testing.T) {
	e, _ := newTestEngine(t, setup{cash: "100000", prices: []string{"3500", "3505"}})

	require.True(t, e.Open(rb, market.Long, d("3500"), 2).Success)
	require.True(t, e.Open(rb, market.Short, d("3500"), 1).Success)
	require.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)
	require.NoError(t, e.Tick())

	recs := e.CloseAll()
	require.Len(t, recs, 2)
	assert.Equal(t, market.Long, recs[0].Side)
	assert.Equal(t, int64(3), recs[0].Volume)
	assert.Len(t, recs[0].Tranches, 2)
	assertDecimal(t, "150", *recs[0].RealizedPnL)
	assert.Equal(t, market.Short, recs[1].Side)
	assertDecimal(t, "-50", *recs[1].RealizedPnL)

	w := e.Account().Wallet
	assertDecimal(t, "100100", w.Cash())
	assert.True(t, w.MarginInUse().IsZero())
	assert.Empty(t, e.Account().Portfolio.Query(account.Filter{Statuses: []market.Status{market.Opened}}))
	assert.Empty(t, e.CloseAll())
}

func TestEngineClockAndTermination(t *testing.T) {
	e, j := newTestEngine(t, setup{prices: []string{"1", "2", "3"}})
	assert.Equal(t, epoch, e.Now())
	require.Len(t, j.equity, 1)

	for i := 1; i <= 2; i++ {
		assert.False(t, e.Terminated())
		require.NoError(t, e.Tick())
		assert.Equal(t, epoch.Add(time.Duration(i)*time.Second), e.Now())
		q, err := e.Quote(rb)
		require.NoError(t, err)
		assert.Equal(t, e.Now(), q.Time)
	}
	assert.True(t, e.Terminated())
	assert.Len(t, j.equity, 3)

	err := e.Tick()
	assert.ErrorIs(t, err, kline.ErrOutOfRange)
}

func TestEngineResetStartsOver(t *testing.T) {
	e, _ := newTestEngine(t, setup{prices: []string{"3500", "3510", "3520"}})
	require.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)
	require.NoError(t, e.Tick())

	require.NoError(t, e.Reset())
	assert.Equal(t, epoch, e.Now())
	assert.Equal(t, 0, e.Account().Portfolio.Len())
	assertDecimal(t, "10000", e.Account().Wallet.Cash())

	p, err := e.ReferencePrice(rb)
	require.NoError(t, err)
	assertDecimal(t, "3500", p)
}

func TestEngineTickBeforeReset(t *testing.T) {
	c, err := market.NewContract(rb, "SHFE", "rebar", 10, d("0.13"), d("1"), nil)
	require.NoError(t, err)
	contracts, _ := market.NewRegistry(c)
	ser, _ := kline.NewSeries(rb, time.Second)
	klines, _ := kline.NewManager(ser)
	clock, _ := NewClock(time.Time{}, time.Second)

	e, err := NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   account.New(d("1000"), "CNY", 1),
		Trader:    &CTPTrader{PriceField: "last_price"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.RunID())
	assert.Equal(t, journal.Discard, e.Journal())

	assert.ErrorIs(t, e.Tick(), ErrNotReset)
	assert.ErrorIs(t, e.Reset(), kline.ErrNotActivated)

	rec := e.Open(rb, market.Long, d("3500"), 1)
	assert.False(t, rec.Success)
	assert.ErrorIs(t, rec.Cause(), ErrNotReset)
}

// Activated but never reset: the clock still holds its zero time, so no
// trade may reach the ledger.
func TestEngineTradesBeforeReset(t *testing.T) {
	c, err := market.NewContract(rb, "SHFE", "rebar", 10, d("0.13"), d("1"), nil)
	require.NoError(t, err)
	contracts, _ := market.NewRegistry(c)
	ser, _ := kline.NewSeries(rb, time.Second)
	klines, _ := kline.NewManager(ser)
	clock, _ := NewClock(time.Time{}, time.Second)
	j := &testJournal{}

	e, err := NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   account.New(d("10000"), "CNY", 1),
		Trader:    &CTPTrader{PriceField: "last_price"},
		Journal:   j,
	})
	require.NoError(t, err)
	require.NoError(t, e.Activate([][]kline.Row{series(time.Second, "3500", "3500")}))
	before := ledger(t, e)

	var open, closed TradeRecord
	require.NotPanics(t, func() { open = e.Open(rb, market.Long, d("3500"), 1) })
	require.NotPanics(t, func() { closed = e.Close(rb, market.Long, d("3500"), AllVolume) })
	assert.False(t, open.Success)
	assert.ErrorIs(t, open.Cause(), ErrNotReset)
	assert.ErrorIs(t, closed.Cause(), ErrNotReset)
	assert.Empty(t, e.CloseAll())
	assert.JSONEq(t, before, ledger(t, e))
	assert.Len(t, j.trades, 2)

	require.NoError(t, e.Reset())
	assert.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)
}

func TestNewEngineValidation(t *testing.T) {
	contracts, _ := market.NewRegistry()
	ser, _ := kline.NewSeries(rb, time.Second)
	klines, _ := kline.NewManager(ser)
	clock, _ := NewClock(time.Time{}, time.Second)

	_, err := NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   account.New(d("1000"), "CNY", 1),
		Trader:    &CTPTrader{PriceField: "last_price"},
	})
	assert.ErrorIs(t, err, market.ErrContractNotFound)

	_, err = NewEngine(Components{Clock: clock})
	assert.ErrorContains(t, err, "kline manager")
}

func TestEngineComponentOrder(t *testing.T) {
	e, _ := newTestEngine(t, setup{prices: []string{"1", "2"}})
	assert.Equal(t, []Kind{KindClock, KindContracts, KindKLine, KindAccount, KindTrader, KindJournal}, e.Order())
}

func TestEngineJournal(t *testing.T) {
	e, j := newTestEngine(t, setup{prices: []string{"3500", "3510"}})

	require.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)
	require.NoError(t, e.Tick())
	require.True(t, e.Close(rb, market.Long, d("3510"), AllVolume).Success)
	assert.False(t, e.Close(rb, market.Long, d("3510"), AllVolume).Success)

	require.Len(t, j.trades, 3)
	for _, row := range j.trades {
		assert.Equal(t, "test-run", row.RunID)
	}
	assert.Equal(t, market.Open, j.trades[0].Type)
	assertDecimal(t, "4550", j.trades[0].Margin.Decimal)
	assert.False(t, j.trades[0].RealizedPnL.Valid)
	assert.Equal(t, epoch.Add(time.Second), j.trades[1].Time)
	assertDecimal(t, "100", j.trades[1].RealizedPnL.Decimal)
	assert.False(t, j.trades[2].Success)

	require.Len(t, j.equity, 2)
	assertDecimal(t, "10000", j.equity[0].Equity())

	s := journal.Summarize(e.RunID(), j.trades, j.equity)
	assert.Equal(t, 3, s.Attempts)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.Wins)

	require.NoError(t, e.Shutdown())
	assert.True(t, j.closed)
}

func TestEngineMarketPrice(t *testing.T) {
	e, _ := newTestEngine(t, setup{slippage: "2", prices: []string{"3500", "3501"}})

	tests := []struct {
		tt   market.TradeType
		side market.Side
		want string
	}{
		{market.Open, market.Long, "3502"},
		{market.Open, market.Short, "3498"},
		{market.Close, market.Long, "3498"},
		{market.Close, market.Short, "3502"},
	}
	for _, tt := range tests {
		p, err := e.MarketPrice(rb, tt.tt, tt.side)
		require.NoError(t, err)
		assertDecimal(t, tt.want, p)
	}

	_, err := e.MarketPrice("DCE.i2405", market.Open, market.Long)
	assert.ErrorIs(t, err, market.ErrContractNotFound)
}

func TestEngineActivateRequiresPriceField(t *testing.T) {
	e, _ := newTestEngine(t, setup{prices: []string{"3500", "3501", "3502"}})
	require.True(t, e.Open(rb, market.Long, d("3500"), 1).Success)

	rows := series(time.Second, "3500", "3501", "3502")
	rows[1].Fields = map[string]decimal.Decimal{"volume": d("7")}

	err := e.Activate([][]kline.Row{rows})
	require.ErrorIs(t, err, ErrMissingPriceField)
	assert.Contains(t, err.Error(), "09:00:01")

	// the running data is untouched
	require.NoError(t, e.Tick())
	q, err := e.Quote(rb)
	require.NoError(t, err)
	assertDecimal(t, "3501", q.MustGet("last_price"))
	assertDecimal(t, "10", e.Log().UnrealizedPnL)
}

func TestEngineAtMarket(t *testing.T) {
	e, j := newTestEngine(t, setup{cash: "100000", slippage: "2", prices: []string{"3500", "3500"}})

	rec := e.OpenAtMarket(rb, market.Long, 2)
	require.True(t, rec.Success, rec.Error)
	assertDecimal(t, "3502", rec.Price)

	rec = e.OpenAtMarket("DCE.i2405", market.Long, 1)
	assert.False(t, rec.Success)
	assert.ErrorIs(t, rec.Cause(), market.ErrContractNotFound)
	assert.True(t, rec.Price.IsZero())

	rec = e.CloseAtMarket(rb, market.Long, AllVolume)
	require.True(t, rec.Success, rec.Error)
	assertDecimal(t, "3498", rec.Price)
	assert.Equal(t, int64(2), rec.Volume)
	assert.Len(t, j.trades, 3)
}
