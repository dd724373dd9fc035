package journal

import "sync"

// Memory keeps every record in memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	trades []TradeRecord
	equity []EquitySnapshot
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, e)
	return nil
}

func (m *Memory) Close() error { return nil }

// Trades returns a copy of the recorded trade attempts.
func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...)
}

// Equity returns a copy of the recorded equity curve.
func (m *Memory) Equity() []EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquitySnapshot(nil), m.equity...)
}

// Summary folds everything recorded for runID.
func (m *Memory) Summary(runID string) RunSummary {
	var trades []TradeRecord
	for _, t := range m.Trades() {
		if t.RunID == runID {
			trades = append(trades, t)
		}
	}
	var equity []EquitySnapshot
	for _, e := range m.Equity() {
		if e.RunID == runID {
			equity = append(equity, e)
		}
	}
	return Summarize(runID, trades, equity)
}

// Tee writes every record to each journal in turn. The first error stops
// the write; Close closes them all and returns the first error.
func Tee(js ...Journal) Journal {
	return tee(js)
}

type tee []Journal

func (t tee) RecordTrade(r TradeRecord) error {
	for _, j := range t {
		if err := j.RecordTrade(r); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) RecordEquity(e EquitySnapshot) error {
	for _, j := range t {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var first error
	for _, j := range t {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
