package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Components are the parts an Engine is assembled from. Journal and
// Logger are optional; RunID is generated when empty.
type Components struct {
	Clock     *Clock
	KLines    *kline.Manager
	Contracts *market.Registry
	Account   *account.Account
	Trader    Trader
	Journal   journal.Journal
	Logger    *log.Logger
	RunID     string
}

// Engine drives one simulation run: it owns the clock, the quote series,
// the ledger and the trader, and journals every trade attempt and every
// post-tick equity snapshot.
type Engine struct {
	mu sync.Mutex

	runID string
	log   *log.Entry

	clock     *Clock
	klines    *kline.Manager
	contracts *market.Registry
	account   *account.Account
	trader    Trader
	journal   journal.Journal

	order   []Kind
	setup   map[Kind]func() error
	reset   map[Kind]func() error
	started bool
}

func NewEngine(c Components) (*Engine, error) {
	switch {
	case c.Clock == nil:
		return nil, errors.New("engine needs a clock")
	case c.KLines == nil:
		return nil, errors.New("engine needs a kline manager")
	case c.Contracts == nil:
		return nil, errors.New("engine needs a contract registry")
	case c.Account == nil:
		return nil, errors.New("engine needs an account")
	case c.Trader == nil:
		return nil, errors.New("engine needs a trader")
	}
	for _, code := range c.KLines.Codes() {
		if _, err := c.Contracts.Get(code); err != nil {
			return nil, fmt.Errorf("series %s: %w", code, err)
		}
	}

	if c.Journal == nil {
		c.Journal = journal.Discard
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}

	order, err := resolve(dependencies)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		runID:     c.RunID,
		log:       c.Logger.WithField("run", c.RunID),
		clock:     c.Clock,
		klines:    c.KLines,
		contracts: c.Contracts,
		account:   c.Account,
		trader:    c.Trader,
		journal:   c.Journal,
		order:     order,
	}
	e.setup = map[Kind]func() error{
		KindKLine: func() error {
			e.klines.Bind(e.clock)
			return nil
		},
		KindTrader: func() error {
			e.trader.Bind(Env{
				Clock:     e.clock,
				KLines:    e.klines,
				Contracts: e.contracts,
				Account:   e.account,
			})
			return nil
		},
	}
	e.reset = map[Kind]func() error{
		KindClock: func() error {
			start, err := e.klines.CalcLatestStartTime()
			if err != nil {
				return err
			}
			e.clock.Set(start)
			return nil
		},
		KindKLine: func() error {
			return e.klines.Reset()
		},
		KindAccount: func() error {
			e.account.Reset()
			return nil
		},
	}

	if err := e.run(e.setup); err != nil {
		return nil, fmt.Errorf("engine setup: %w", err)
	}
	return e, nil
}

// run calls the hooks present in hooks in dependency order.
func (e *Engine) run(hooks map[Kind]func() error) error {
	for _, k := range e.order {
		h, ok := hooks[k]
		if !ok {
			continue
		}
		if err := h(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

func (e *Engine) RunID() string { return e.runID }

func (e *Engine) Clock() *Clock               { return e.clock }
func (e *Engine) KLines() *kline.Manager      { return e.klines }
func (e *Engine) Contracts() *market.Registry { return e.contracts }
func (e *Engine) Account() *account.Account   { return e.account }
func (e *Engine) Trader() Trader              { return e.trader }
func (e *Engine) Journal() journal.Journal    { return e.journal }
func (e *Engine) Order() []Kind               { return append([]Kind(nil), e.order...) }

// Activate loads one row set per declared series, in declaration order.
func (e *Engine) Activate(sets [][]kline.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkPriceFieldLocked(sets); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if err := e.klines.Activate(sets); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	e.started = false
	e.log.WithField("series", len(sets)).Info("activated")
	return nil
}

// checkPriceFieldLocked requires every row of a driver series to carry the
// trader's price field, so revaluation can never fail mid-run.
func (e *Engine) checkPriceFieldLocked(sets [][]kline.Row) error {
	field := e.trader.Config().PriceField
	for i, s := range e.klines.Series() {
		if i >= len(sets) {
			break
		}
		if d, err := e.klines.Driver(s.Code()); err != nil || d != s {
			continue
		}
		for _, r := range sets[i] {
			if _, ok := r.Fields[field]; !ok {
				return fmt.Errorf("%w %q for %s at %s", ErrMissingPriceField, field, s.Code(), r.Time.Format(time.RFC3339Nano))
			}
		}
	}
	return nil
}

// Reset starts a new run: the ledger is emptied, the clock is anchored at
// the latest first row over every instrument and all cursors are relocated
// there.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.run(e.reset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := e.revalueLocked(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	e.started = true
	e.log.WithField("start", e.clock.Now()).Info("reset")
	return e.recordEquityLocked()
}

// Tick advances the clock one step, relocates every series and revalues
// the opened positions.
func (e *Engine) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotReset
	}
	now := e.clock.Tick()
	if err := e.klines.Tick(); err != nil {
		return fmt.Errorf("tick %s: %w", now, err)
	}
	if err := e.revalueLocked(); err != nil {
		return fmt.Errorf("tick %s: %w", now, err)
	}
	e.log.WithField("now", now).Debug("tick")
	return e.recordEquityLocked()
}

// Terminated reports whether a driver series has no further row.
func (e *Engine) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.klines.Terminated()
}

func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Quote is the current quote of code's driver series.
func (e *Engine) Quote(code string) (kline.Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quoteLocked(code)
}

func (e *Engine) quoteLocked(code string) (kline.Quote, error) {
	s, err := e.klines.Driver(code)
	if err != nil {
		return kline.Quote{}, err
	}
	return s.Quote()
}

// ReferencePrice is the trader's price field of code's current quote.
func (e *Engine) ReferencePrice(code string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.referencePriceLocked(code)
}

func (e *Engine) referencePriceLocked(code string) (decimal.Decimal, error) {
	q, err := e.quoteLocked(code)
	if err != nil {
		return decimal.Zero, err
	}
	field := e.trader.Config().PriceField
	v, ok := q.Get(field)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %q for %s at %s", ErrMissingPriceField, field, code, q.Time)
	}
	return v, nil
}

// Log is the current account summary.
func (e *Engine) Log() account.Log {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Log()
}

// Open opens volume lots of code on side at price.
func (e *Engine) Open(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return e.commitLocked(newRecord(e.clock.Now(), code, market.Open, side, price, volume).reject(ErrNotReset))
	}
	return e.commitLocked(e.trader.Open(code, side, price, volume))
}

// Close closes volume lots of code on side at price, oldest positions
// first. AllVolume closes everything opened on that side.
func (e *Engine) Close(code string, side market.Side, price decimal.Decimal, volume int64) TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return e.commitLocked(newRecord(e.clock.Now(), code, market.Close, side, price, volume).reject(ErrNotReset))
	}
	return e.commitLocked(e.trader.Close(code, side, price, volume))
}

// OpenAtMarket opens at MarketPrice. When no market price exists the
// rejection carries that error.
func (e *Engine) OpenAtMarket(code string, side market.Side, volume int64) TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atMarketLocked(code, market.Open, side, volume)
}

// CloseAtMarket closes at MarketPrice, oldest positions first.
func (e *Engine) CloseAtMarket(code string, side market.Side, volume int64) TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atMarketLocked(code, market.Close, side, volume)
}

func (e *Engine) atMarketLocked(code string, tt market.TradeType, side market.Side, volume int64) TradeRecord {
	price, err := e.marketPriceLocked(code, tt, side)
	if err == nil && !e.started {
		err = ErrNotReset
	}
	if err != nil {
		return e.commitLocked(newRecord(e.clock.Now(), code, tt, side, decimal.Zero, volume).reject(err))
	}
	if tt == market.Open {
		return e.commitLocked(e.trader.Open(code, side, price, volume))
	}
	return e.commitLocked(e.trader.Close(code, side, price, volume))
}

// CloseAll flattens every opened position at its MarketPrice, one close
// per code and side.
func (e *Engine) CloseAll() []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	type key struct {
		code string
		side market.Side
	}
	var keys []key
	seen := map[key]bool{}
	for _, p := range e.account.Portfolio.Query(account.Filter{Statuses: []market.Status{market.Opened}}) {
		k := key{p.Code, p.Side}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	out := make([]TradeRecord, 0, len(keys))
	for _, k := range keys {
		price, err := e.marketPriceLocked(k.code, market.Close, k.side)
		if err == nil && !e.started {
			err = ErrNotReset
		}
		if err != nil {
			rec := newRecord(e.clock.Now(), k.code, market.Close, k.side, decimal.Zero, AllVolume)
			out = append(out, e.commitLocked(rec.reject(err)))
			continue
		}
		out = append(out, e.commitLocked(e.trader.Close(k.code, k.side, price, AllVolume)))
	}
	return out
}

// MarketPrice is the least favorable price the trader still accepts for a
// trade of type tt on side: the reference price moved by the slippage.
func (e *Engine) MarketPrice(code string, tt market.TradeType, side market.Side) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.marketPriceLocked(code, tt, side)
}

func (e *Engine) marketPriceLocked(code string, tt market.TradeType, side market.Side) (decimal.Decimal, error) {
	c, err := e.contracts.Get(code)
	if err != nil {
		return decimal.Zero, err
	}
	ref, err := e.referencePriceLocked(code)
	if err != nil {
		return decimal.Zero, err
	}
	return market.SlippagePrice(ref, c.TickSize(), e.trader.Config().Slippage, tt, side), nil
}

// commitLocked revalues after a committed trade and journals the attempt.
func (e *Engine) commitLocked(rec TradeRecord) TradeRecord {
	entry := e.log.WithFields(log.Fields{
		"code":   rec.Code,
		"type":   rec.Type,
		"side":   rec.Side,
		"price":  rec.Price,
		"volume": rec.Volume,
	})
	if rec.Success {
		if err := e.revalueLocked(); err != nil {
			entry.WithError(err).Error("revalue after trade")
		}
		if rec.Account != nil {
			l := e.account.Log()
			rec.Account = &l
		}
		entry.Debug("trade")
	} else {
		entry.WithField("error", rec.Error).Warn("trade rejected")
	}

	if err := e.journal.RecordTrade(rec.Journal(e.runID)); err != nil {
		entry.WithError(err).Error("journal trade")
	}
	return rec
}

// revalueLocked marks every instrument with opened positions to its
// reference price. Instruments with nothing open are cleared.
func (e *Engine) revalueLocked() error {
	wallet := e.account.Wallet
	for _, code := range e.klines.Codes() {
		opened := e.account.Portfolio.Query(account.Filter{
			Codes:    []string{code},
			Statuses: []market.Status{market.Opened},
		})
		if len(opened) == 0 {
			wallet.ClearUnrealizedPnL(code)
			continue
		}

		c, err := e.contracts.Get(code)
		if err != nil {
			return err
		}
		last, err := e.referencePriceLocked(code)
		if err != nil {
			return err
		}
		pnl := decimal.Zero
		for _, p := range opened {
			pnl = pnl.Add(p.UnrealizedPnL(last, c.Multiplier()))
		}
		wallet.SetUnrealizedPnL(code, pnl)
	}
	return nil
}

func (e *Engine) recordEquityLocked() error {
	l := e.account.Log()
	err := e.journal.RecordEquity(journal.EquitySnapshot{
		RunID:         e.runID,
		Time:          e.clock.Now(),
		Cash:          l.Cash,
		MarginInUse:   l.MarginInUse,
		UnrealizedPnL: l.UnrealizedPnL,
		AvailableCash: l.AvailableCash,
	})
	if err != nil {
		return fmt.Errorf("journal equity: %w", err)
	}
	return nil
}

// Shutdown closes the journal.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.journal.Close()
}
