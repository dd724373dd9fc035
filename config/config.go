package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete simulation configuration
type Config struct {
	Seed      int64            `json:"seed" yaml:"seed"`
	Wallet    WalletConfig     `json:"wallet" yaml:"wallet"`
	Contracts []ContractConfig `json:"contracts" yaml:"contracts"`
	Series    []SeriesConfig   `json:"series" yaml:"series"`
	Trader    TraderConfig     `json:"trader" yaml:"trader"`
	Clock     ClockConfig      `json:"clock" yaml:"clock"`
	Journal   JournalConfig    `json:"journal" yaml:"journal"`

	baseDir string
}

// WalletConfig contains account initialization parameters
type WalletConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

// ContractConfig is the reference data of one instrument.
type ContractConfig struct {
	Code       string           `json:"code" yaml:"code"`
	Exchange   string           `json:"exchange" yaml:"exchange"`
	Commodity  string           `json:"commodity" yaml:"commodity"`
	Multiplier int64            `json:"multiplier" yaml:"multiplier"`
	MarginRate float64          `json:"margin_rate" yaml:"margin_rate"`
	TickSize   float64          `json:"tick_size" yaml:"tick_size"`
	Commission CommissionConfig `json:"commission" yaml:"commission"`
}

// CommissionConfig selects a commission model: "free" (default) or "ctp".
type CommissionConfig struct {
	Name     string    `json:"name" yaml:"name"`
	Exchange FeeConfig `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Broker   FeeConfig `json:"broker,omitempty" yaml:"broker,omitempty"`
}

// FeeConfig is one party's fee table: fees per lot, rates on notional.
type FeeConfig struct {
	OpenFee        float64 `json:"open_fee,omitempty" yaml:"open_fee,omitempty"`
	OpenRate       float64 `json:"open_rate,omitempty" yaml:"open_rate,omitempty"`
	CloseFee       float64 `json:"close_fee,omitempty" yaml:"close_fee,omitempty"`
	CloseRate      float64 `json:"close_rate,omitempty" yaml:"close_rate,omitempty"`
	CloseTodayFee  float64 `json:"close_today_fee,omitempty" yaml:"close_today_fee,omitempty"`
	CloseTodayRate float64 `json:"close_today_rate,omitempty" yaml:"close_today_rate,omitempty"`
}

// SeriesConfig declares one quote series. Timestep is in seconds.
type SeriesConfig struct {
	Code     string  `json:"code" yaml:"code"`
	Timestep float64 `json:"timestep" yaml:"timestep"`
	File     string  `json:"file,omitempty" yaml:"file,omitempty"`
	Timezone string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// TraderConfig selects the trader and its parameters. Slippage is in ticks.
type TraderConfig struct {
	Name       string  `json:"name" yaml:"name"`
	PriceField string  `json:"price_field" yaml:"price_field"`
	Slippage   float64 `json:"slippage" yaml:"slippage"`
}

// ClockConfig contains the clock step in seconds. Zero means the finest
// series timestep.
type ClockConfig struct {
	Step float64 `json:"step,omitempty" yaml:"step,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON). Relative
// data and journal paths resolve against the file's directory.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	cfg.baseDir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Wallet.Currency == "" {
		return fmt.Errorf("wallet.currency is required")
	}
	if c.Wallet.Cash <= 0 {
		return fmt.Errorf("wallet.cash must be positive")
	}

	if len(c.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}
	codes := map[string]bool{}
	for i, cc := range c.Contracts {
		if err := cc.validate(); err != nil {
			return fmt.Errorf("contracts[%d].%w", i, err)
		}
		if codes[cc.Code] {
			return fmt.Errorf("contracts[%d].code %q is duplicated", i, cc.Code)
		}
		codes[cc.Code] = true
	}

	if len(c.Series) == 0 {
		return fmt.Errorf("at least one series is required")
	}
	type key struct {
		code string
		ts   float64
	}
	seen := map[key]bool{}
	for i, s := range c.Series {
		if s.Code == "" {
			return fmt.Errorf("series[%d].code is required", i)
		}
		if !codes[s.Code] {
			return fmt.Errorf("series[%d].code %q has no contract", i, s.Code)
		}
		if s.Timestep <= 0 {
			return fmt.Errorf("series[%d].timestep must be positive", i)
		}
		if seen[key{s.Code, s.Timestep}] {
			return fmt.Errorf("series[%d] duplicates %s@%gs", i, s.Code, s.Timestep)
		}
		seen[key{s.Code, s.Timestep}] = true
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return fmt.Errorf("series[%d].timezone: %w", i, err)
			}
		}
	}

	switch c.Trader.Name {
	case "", "ctp":
	default:
		return fmt.Errorf("trader.name %q is unknown, must be 'ctp'", c.Trader.Name)
	}
	if c.Trader.PriceField == "" {
		return fmt.Errorf("trader.price_field is required")
	}
	if c.Trader.Slippage < 0 {
		return fmt.Errorf("trader.slippage must not be negative")
	}

	if c.Clock.Step < 0 {
		return fmt.Errorf("clock.step must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

func (cc ContractConfig) validate() error {
	if cc.Code == "" {
		return fmt.Errorf("code is required")
	}
	if cc.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive")
	}
	if cc.MarginRate <= 0 || cc.MarginRate > 1 {
		return fmt.Errorf("margin_rate must be in (0,1]")
	}
	if cc.TickSize < 0 {
		return fmt.Errorf("tick_size must not be negative")
	}
	switch cc.Commission.Name {
	case "", market.FreeCommissionName, market.CTPCommissionName:
	default:
		return fmt.Errorf("commission.name %q is unknown", cc.Commission.Name)
	}
	return nil
}

// Contract builds the market contract described by cc.
func (cc ContractConfig) Contract() (*market.Contract, error) {
	comm, err := market.NewCommission(market.CommissionConfig{
		Name:     cc.Commission.Name,
		Exchange: cc.Commission.Exchange.schedule(),
		Broker:   cc.Commission.Broker.schedule(),
	})
	if err != nil {
		return nil, err
	}
	return market.NewContract(
		cc.Code, cc.Exchange, cc.Commodity, cc.Multiplier,
		decimal.NewFromFloat(cc.MarginRate), decimal.NewFromFloat(cc.TickSize), comm,
	)
}

func (f FeeConfig) schedule() market.FeeSchedule {
	return market.FeeSchedule{
		OpenFee:        decimal.NewFromFloat(f.OpenFee),
		OpenRate:       decimal.NewFromFloat(f.OpenRate),
		CloseFee:       decimal.NewFromFloat(f.CloseFee),
		CloseRate:      decimal.NewFromFloat(f.CloseRate),
		CloseTodayFee:  decimal.NewFromFloat(f.CloseTodayFee),
		CloseTodayRate: decimal.NewFromFloat(f.CloseTodayRate),
	}
}

// Duration is the timestep as a duration.
func (s SeriesConfig) Duration() time.Duration {
	return kline.Duration(s.Timestep)
}

// Location is the zone naive timestamps in File are read in; UTC when unset.
func (s SeriesConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// ClockStep is the configured step, or the finest series timestep.
func (c *Config) ClockStep() time.Duration {
	if c.Clock.Step > 0 {
		return kline.Duration(c.Clock.Step)
	}
	var step time.Duration
	for _, s := range c.Series {
		if d := s.Duration(); step == 0 || d < step {
			step = d
		}
	}
	return step
}

// InitialCash is the wallet cash as a decimal.
func (c *Config) InitialCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Wallet.Cash)
}

// Slippage is the trader slippage in ticks as a decimal.
func (c *Config) Slippage() decimal.Decimal {
	return decimal.NewFromFloat(c.Trader.Slippage)
}

// ResolvePath makes p relative to the directory the config was loaded from.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Seed: 1,
		Wallet: WalletConfig{
			Currency: "CNY",
			Cash:     100000,
		},
		Contracts: []ContractConfig{
			{
				Code:       "SHFE.rb2405",
				Exchange:   "SHFE",
				Commodity:  "rb",
				Multiplier: 10,
				MarginRate: 0.13,
				TickSize:   1,
				Commission: CommissionConfig{
					Name: market.CTPCommissionName,
					Exchange: FeeConfig{
						OpenRate:       0.0001,
						CloseRate:      0.0001,
						CloseTodayRate: 0.0001,
					},
					Broker: FeeConfig{
						OpenFee:       1,
						CloseFee:      1,
						CloseTodayFee: 1,
					},
				},
			},
		},
		Series: []SeriesConfig{
			{Code: "SHFE.rb2405", Timestep: 60, File: "./data/rb2405_1m.csv", Timezone: "Asia/Shanghai"},
		},
		Trader: TraderConfig{
			Name:       "ctp",
			PriceField: "close",
			Slippage:   1,
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
	}
}
