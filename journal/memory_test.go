package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySummary(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	for _, tr := range sampleTrades(ts) {
		require.NoError(t, m.RecordTrade(tr))
	}
	require.NoError(t, m.RecordTrade(TradeRecord{RunID: "R2", Time: ts, Success: true}))
	require.NoError(t, m.RecordEquity(EquitySnapshot{RunID: "R1", Time: ts, Cash: d("10000")}))
	require.NoError(t, m.RecordEquity(EquitySnapshot{RunID: "R1", Time: ts.Add(time.Second), Cash: d("10093")}))

	assert.Len(t, m.Trades(), 4)
	assert.Len(t, m.Equity(), 2)

	s := m.Summary("R1")
	assert.Equal(t, 3, s.Attempts)
	assert.True(t, s.RealizedPnL.Equal(d("96.5")))
	assert.True(t, s.EndEquity.Equal(d("10093")))
	assert.NoError(t, m.Close())
}

type failing struct {
	closed bool
}

var errBoom = errors.New("boom")

func (f *failing) RecordTrade(TradeRecord) error     { return errBoom }
func (f *failing) RecordEquity(EquitySnapshot) error { return errBoom }
func (f *failing) Close() error {
	f.closed = true
	return errBoom
}

func TestTee(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	j := Tee(a, b)
	require.NoError(t, j.RecordTrade(TradeRecord{RunID: "R1"}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{RunID: "R1"}))
	assert.Len(t, a.Trades(), 1)
	assert.Len(t, b.Equity(), 1)
	assert.NoError(t, j.Close())

	f := &failing{}
	c := NewMemory()
	j = Tee(f, c)
	assert.ErrorIs(t, j.RecordTrade(TradeRecord{}), errBoom)
	assert.Empty(t, c.Trades(), "stops at the first error")
	assert.ErrorIs(t, j.Close(), errBoom)
	assert.True(t, f.closed)
}
