// Package account is the ledger of a simulation run: the wallet holding
// cash and reserved margin, and the portfolio of positions.
package account

import (
	"github.com/rustyeddy/tradegym/internal/id"
	"github.com/shopspring/decimal"
)

type Account struct {
	Wallet    *Wallet
	Portfolio *Portfolio
}

// New builds an account whose position ids are drawn from a generator
// seeded with seed.
func New(cash decimal.Decimal, currency string, seed int64) *Account {
	return &Account{
		Wallet:    NewWallet(cash, currency),
		Portfolio: NewPortfolio(id.NewGenerator(seed)),
	}
}

// Reset returns the wallet to its initial cash and empties the portfolio.
func (a *Account) Reset() {
	a.Wallet.Reset()
	a.Portfolio.Reset()
}

// Log is a point-in-time summary of the account.
type Log struct {
	Cash          decimal.Decimal `json:"cash"`
	MarginInUse   decimal.Decimal `json:"margin_in_use"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	AvailableCash decimal.Decimal `json:"available_cash"`
}

func (a *Account) Log() Log {
	return Log{
		Cash:          a.Wallet.Cash(),
		MarginInUse:   a.Wallet.MarginInUse(),
		UnrealizedPnL: a.Wallet.UnrealizedPnL(),
		AvailableCash: a.Wallet.AvailableCash(),
	}
}

// Equity is cash plus reserved margin plus floating PnL.
func (l Log) Equity() decimal.Decimal {
	return l.Cash.Add(l.MarginInUse).Add(l.UnrealizedPnL)
}

type State struct {
	Wallet    WalletState    `json:"wallet"`
	Portfolio PortfolioState `json:"portfolio"`
}

func (a *Account) State() State {
	return State{Wallet: a.Wallet.State(), Portfolio: a.Portfolio.State()}
}

func FromState(st State) (*Account, error) {
	p, err := PortfolioFromState(st.Portfolio)
	if err != nil {
		return nil, err
	}
	return &Account{Wallet: WalletFromState(st.Wallet), Portfolio: p}, nil
}
