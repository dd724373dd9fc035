package account

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Wallet is the cash side of the ledger. AllocateMargin and ReleaseMargin
// are the only calls that move cash.
type Wallet struct {
	currency    string
	initialCash decimal.Decimal
	cash        decimal.Decimal
	marginInUse decimal.Decimal
	unrealized  map[string]decimal.Decimal
}

func NewWallet(cash decimal.Decimal, currency string) *Wallet {
	return &Wallet{
		currency:    currency,
		initialCash: cash,
		cash:        cash,
		unrealized:  make(map[string]decimal.Decimal),
	}
}

func (w *Wallet) Currency() string             { return w.currency }
func (w *Wallet) InitialCash() decimal.Decimal { return w.initialCash }
func (w *Wallet) Cash() decimal.Decimal        { return w.cash }
func (w *Wallet) MarginInUse() decimal.Decimal { return w.marginInUse }

// UnrealizedPnL sums the floating PnL of every instrument.
func (w *Wallet) UnrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, code := range w.codes() {
		total = total.Add(w.unrealized[code])
	}
	return total
}

// UnrealizedPnLOf returns the floating PnL recorded for code.
func (w *Wallet) UnrealizedPnLOf(code string) (decimal.Decimal, bool) {
	v, ok := w.unrealized[code]
	return v, ok
}

// AvailableCash is cash plus floating PnL.
func (w *Wallet) AvailableCash() decimal.Decimal {
	return w.cash.Add(w.UnrealizedPnL())
}

func (w *Wallet) HasEnoughAvailableCash(amount decimal.Decimal) bool {
	return w.AvailableCash().GreaterThanOrEqual(amount)
}

// AllocateMargin reserves margin for an open and pays its commission.
func (w *Wallet) AllocateMargin(margin, commission decimal.Decimal) {
	w.cash = w.cash.Sub(margin.Add(commission))
	w.marginInUse = w.marginInUse.Add(margin)
}

// ReleaseMargin returns margin from a close and books its PnL. pnl is the
// price PnL before commission; commission is charged here, once.
func (w *Wallet) ReleaseMargin(margin, pnl, commission decimal.Decimal) {
	w.cash = w.cash.Add(margin).Add(pnl).Sub(commission)
	w.marginInUse = w.marginInUse.Sub(margin)
}

// SetUnrealizedPnL records the floating PnL of an instrument. Zero is a
// value like any other; use ClearUnrealizedPnL once nothing is open.
func (w *Wallet) SetUnrealizedPnL(code string, pnl decimal.Decimal) {
	w.unrealized[code] = pnl
}

func (w *Wallet) ClearUnrealizedPnL(code string) {
	delete(w.unrealized, code)
}

// Reset restores the wallet to its opening balance.
func (w *Wallet) Reset() {
	w.cash = w.initialCash
	w.marginInUse = decimal.Zero
	w.unrealized = make(map[string]decimal.Decimal)
}

func (w *Wallet) codes() []string {
	out := make([]string, 0, len(w.unrealized))
	for k := range w.unrealized {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type WalletState struct {
	Currency      string                     `json:"currency"`
	InitialCash   decimal.Decimal            `json:"initial_cash"`
	Cash          decimal.Decimal            `json:"cash"`
	MarginInUse   decimal.Decimal            `json:"margin_in_use"`
	UnrealizedPnL map[string]decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

func (w *Wallet) State() WalletState {
	st := WalletState{
		Currency:    w.currency,
		InitialCash: w.initialCash,
		Cash:        w.cash,
		MarginInUse: w.marginInUse,
	}
	if len(w.unrealized) > 0 {
		st.UnrealizedPnL = make(map[string]decimal.Decimal, len(w.unrealized))
		for k, v := range w.unrealized {
			st.UnrealizedPnL[k] = v
		}
	}
	return st
}

func WalletFromState(st WalletState) *Wallet {
	w := &Wallet{
		currency:    st.Currency,
		initialCash: st.InitialCash,
		cash:        st.Cash,
		marginInUse: st.MarginInUse,
		unrealized:  make(map[string]decimal.Decimal, len(st.UnrealizedPnL)),
	}
	for k, v := range st.UnrealizedPnL {
		w.unrealized[k] = v
	}
	return w
}
