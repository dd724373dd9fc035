package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/config"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
)

// Build assembles an engine from a validated configuration. The series
// are declared but not activated; see LoadSeries.
func Build(cfg *config.Config, j journal.Journal) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	contracts, err := market.NewRegistry()
	if err != nil {
		return nil, err
	}
	for i, cc := range cfg.Contracts {
		c, err := cc.Contract()
		if err != nil {
			return nil, fmt.Errorf("contracts[%d]: %w", i, err)
		}
		if err := contracts.Add(c); err != nil {
			return nil, fmt.Errorf("contracts[%d]: %w", i, err)
		}
	}

	klines, err := kline.NewManager()
	if err != nil {
		return nil, err
	}
	for i, sc := range cfg.Series {
		s, err := kline.NewSeries(sc.Code, sc.Duration())
		if err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
		if err := klines.Add(s); err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
	}

	clock, err := NewClock(time.Time{}, cfg.ClockStep())
	if err != nil {
		return nil, err
	}

	trader, err := NewTrader(TraderConfig{
		Name:       cfg.Trader.Name,
		PriceField: cfg.Trader.PriceField,
		Slippage:   cfg.Slippage(),
	})
	if err != nil {
		return nil, err
	}

	return NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   account.New(cfg.InitialCash(), cfg.Wallet.Currency, cfg.Seed),
		Trader:    trader,
		Journal:   j,
	})
}

// LoadSeries reads the CSV file of every declared series, in declaration
// order, ready for Engine.Activate.
func LoadSeries(cfg *config.Config) ([][]kline.Row, error) {
	sets := make([][]kline.Row, 0, len(cfg.Series))
	for i, sc := range cfg.Series {
		if sc.File == "" {
			return nil, fmt.Errorf("series[%d] %s has no file", i, sc.Code)
		}
		loc, err := sc.Location()
		if err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
		rows, err := kline.LoadCSVFile(cfg.ResolvePath(sc.File), loc)
		if err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
		sets = append(sets, rows)
	}
	return sets, nil
}

// OpenJournal opens the journal selected by cfg. A missing or "none" type
// yields journal.Discard.
func OpenJournal(cfg *config.Config) (journal.Journal, error) {
	jc := cfg.Journal
	switch jc.Type {
	case "", "none":
		return journal.Discard, nil
	case "csv":
		j, err := journal.NewCSV(cfg.ResolvePath(jc.TradesFile), cfg.ResolvePath(jc.EquityFile))
		if err != nil {
			return nil, err
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.ResolvePath(jc.DBPath))
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}
