package sim

import (
	"fmt"

	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
)

// EngineState is a checkpoint of a run. Restoring it and exporting again
// yields the same JSON.
type EngineState struct {
	RunID     string                 `json:"run_id"`
	Clock     ClockState             `json:"clock"`
	Contracts []market.ContractState `json:"contracts"`
	KLines    kline.ManagerState     `json:"klines"`
	Account   account.State          `json:"account"`
	Trader    TraderConfig           `json:"trader"`
	Started   bool                   `json:"started"`
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return EngineState{
		RunID:     e.runID,
		Clock:     e.clock.State(),
		Contracts: e.contracts.State(),
		KLines:    e.klines.State(),
		Account:   e.account.State(),
		Trader:    e.trader.Config(),
		Started:   e.started,
	}
}

// Restore rebuilds an engine from a checkpoint. j may be nil.
func Restore(st EngineState, j journal.Journal) (*Engine, error) {
	clock, err := ClockFromState(st.Clock)
	if err != nil {
		return nil, fmt.Errorf("restore clock: %w", err)
	}
	contracts, err := market.RegistryFromState(st.Contracts)
	if err != nil {
		return nil, fmt.Errorf("restore contracts: %w", err)
	}
	klines, err := kline.ManagerFromState(st.KLines)
	if err != nil {
		return nil, fmt.Errorf("restore klines: %w", err)
	}
	acct, err := account.FromState(st.Account)
	if err != nil {
		return nil, fmt.Errorf("restore account: %w", err)
	}
	trader, err := NewTrader(st.Trader)
	if err != nil {
		return nil, fmt.Errorf("restore trader: %w", err)
	}

	e, err := NewEngine(Components{
		Clock:     clock,
		KLines:    klines,
		Contracts: contracts,
		Account:   acct,
		Trader:    trader,
		Journal:   j,
		RunID:     st.RunID,
	})
	if err != nil {
		return nil, err
	}
	e.started = st.Started
	e.log.WithField("now", clock.Now()).Info("restored")
	return e, nil
}
