package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func sampleTrades(ts time.Time) []TradeRecord {
	return []TradeRecord{
		{
			RunID: "R1", Time: ts, Code: "SHFE.rb2405", Type: market.Open, Side: market.Long,
			Price: d("3500"), Volume: 1, Success: true,
			SlippagePrice: nd("3501"), Margin: nd("4550.00"), Commission: nd("3.5"),
		},
		{
			RunID: "R1", Time: ts.Add(time.Second), Code: "SHFE.rb2405", Type: market.Close, Side: market.Long,
			Price: d("3600"), Volume: 2, Success: false, Error: "insufficient volume",
		},
		{
			RunID: "R1", Time: ts.Add(2 * time.Second), Code: "SHFE.rb2405", Type: market.Close, Side: market.Long,
			Price: d("3510"), Volume: 1, Success: true,
			SlippagePrice: nd("3509"), Margin: nd("4550.00"), Commission: nd("3.5"), RealizedPnL: nd("96.5"),
		},
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	for _, rec := range sampleTrades(ts) {
		require.NoError(t, j.RecordTrade(rec))
	}
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		margin     sql.NullString
		realized   sql.NullString
		success    bool
		errMessage string
	)
	err = db.QueryRow(`SELECT margin, realized_pnl, success, error FROM trades WHERE id = 2`).
		Scan(&margin, &realized, &success, &errMessage)
	require.NoError(t, err)

	assert.False(t, margin.Valid, "rejected trades carry no money fields")
	assert.False(t, realized.Valid)
	assert.False(t, success)
	assert.Equal(t, "insufficient volume", errMessage)

	err = db.QueryRow(`SELECT margin FROM trades WHERE id = 1`).Scan(&margin)
	require.NoError(t, err)
	assert.Equal(t, "4550", margin.String)
}

func TestSQLiteListTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	want := sampleTrades(ts)
	for _, rec := range want {
		require.NoError(t, j.RecordTrade(rec))
	}
	other := want[0]
	other.RunID = "R2"
	require.NoError(t, j.RecordTrade(other))

	got, err := j.ListTrades("R1")
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.True(t, got[i].Time.Equal(want[i].Time))
		assert.Equal(t, want[i].Code, got[i].Code)
		assert.Equal(t, want[i].Type, got[i].Type)
		assert.Equal(t, want[i].Side, got[i].Side)
		assert.True(t, want[i].Price.Equal(got[i].Price))
		assert.Equal(t, want[i].Volume, got[i].Volume)
		assert.Equal(t, want[i].Success, got[i].Success)
		assert.Equal(t, want[i].Error, got[i].Error)
		assert.Equal(t, want[i].Margin.Valid, got[i].Margin.Valid)
		if want[i].Margin.Valid {
			assert.True(t, want[i].Margin.Decimal.Equal(got[i].Margin.Decimal))
		}
		assert.Equal(t, want[i].RealizedPnL.Valid, got[i].RealizedPnL.Valid)
	}
}

func TestSQLiteEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	rec := EquitySnapshot{
		RunID:         "R1",
		Time:          ts,
		Cash:          d("5450.00"),
		MarginInUse:   d("4550.00"),
		UnrealizedPnL: d("-12.5"),
		AvailableCash: d("5437.5"),
	}
	require.NoError(t, j.RecordEquity(rec))

	got, err := j.ListEquity("R1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].Time.Equal(ts))
	assert.True(t, got[0].Cash.Equal(rec.Cash))
	assert.True(t, got[0].MarginInUse.Equal(rec.MarginInUse))
	assert.True(t, got[0].UnrealizedPnL.Equal(rec.UnrealizedPnL))
	assert.True(t, got[0].AvailableCash.Equal(rec.AvailableCash))
	assert.True(t, got[0].Equity().Equal(d("9987.5")))

	none, err := j.ListEquity("nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	runs, err := j.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordEquity(EquitySnapshot{RunID: "B", Time: ts.Add(time.Hour), Cash: d("1")}))
	require.NoError(t, j.RecordTrade(TradeRecord{RunID: "A", Time: ts, Code: "SHFE.rb2405", Price: d("1")}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{RunID: "A", Time: ts, Cash: d("1")}))

	runs, err = j.ListRuns()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, runs)
}
