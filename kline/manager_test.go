package kline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newSeries(t *testing.T, code string, ts time.Duration) *Series {
	t.Helper()
	s, err := NewSeries(code, ts)
	require.NoError(t, err)
	return s
}

func TestManagerLookup(t *testing.T) {
	fine := newSeries(t, "rb", time.Second)
	coarse := newSeries(t, "rb", time.Minute)
	other := newSeries(t, "hc", 5*time.Second)

	m, err := NewManager(coarse, fine, other)
	require.NoError(t, err)

	got, err := m.Get("rb")
	require.NoError(t, err)
	assert.Same(t, coarse, got)

	got, err = m.GetTimestep("rb", time.Second)
	require.NoError(t, err)
	assert.Same(t, fine, got)

	got, err = m.Driver("rb")
	require.NoError(t, err)
	assert.Same(t, fine, got)

	_, err = m.Get("cu")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetTimestep("rb", 2*time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"rb", "hc"}, m.Codes())
	assert.ErrorIs(t, m.Add(newSeries(t, "rb", time.Minute)), ErrAlreadyExists)
}

func TestManagerActivateCountMismatch(t *testing.T) {
	m, err := NewManager(newSeries(t, "rb", time.Second))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Activate(nil), ErrConfigMismatch)
}

func TestCalcLatestStartTime(t *testing.T) {
	rbFine := newSeries(t, "rb", time.Second)
	rbCoarse := newSeries(t, "rb", 3*time.Second)
	hc := newSeries(t, "hc", time.Second)

	m, err := NewManager(rbCoarse, rbFine, hc)
	require.NoError(t, err)
	require.NoError(t, m.Activate([][]Row{
		rows(0, 3, 6, 9),
		rows(seq(2, 12)...),
		rows(seq(1, 12)...),
	}))

	start, err := m.CalcLatestStartTime()
	require.NoError(t, err)
	assert.True(t, start.Equal(at(2)), "got %s", start)
}

func TestManagerMultiTimeframe(t *testing.T) {
	fine := newSeries(t, "rb", time.Second)
	coarse := newSeries(t, "rb", 3*time.Second)
	m, err := NewManager(fine, coarse)
	require.NoError(t, err)
	require.NoError(t, m.Activate([][]Row{
		rows(seq(0, 11)...),
		rows(0, 3, 6, 9),
	}))

	clock := &fakeClock{}
	m.Bind(clock)
	start, err := m.CalcLatestStartTime()
	require.NoError(t, err)
	clock.now = start
	require.NoError(t, m.Reset())

	for i := 1; i <= 11; i++ {
		clock.now = at(float64(i))
		require.NoError(t, m.Tick())

		assert.True(t, cursorTime(t, fine).Equal(at(float64(i))))
		want := at(float64(i / 3 * 3))
		assert.True(t, cursorTime(t, coarse).Equal(want), "step %d: coarse at %s", i, cursorTime(t, coarse))
	}
	assert.True(t, m.Terminated())

	clock.now = at(12)
	assert.ErrorIs(t, m.Tick(), ErrOutOfRange)
}

func TestManagerResetRewinds(t *testing.T) {
	s := newSeries(t, "rb", time.Second)
	m, err := NewManager(s)
	require.NoError(t, err)
	require.NoError(t, m.Activate([][]Row{rows(seq(0, 5)...)}))

	clock := &fakeClock{now: at(0)}
	m.Bind(clock)
	require.NoError(t, m.Reset())
	clock.now = at(4)
	require.NoError(t, m.Tick())
	assert.Equal(t, 4, s.Cursor())

	clock.now = at(1)
	require.NoError(t, m.Reset())
	assert.Equal(t, 1, s.Cursor())
}

func TestManagerUnbound(t *testing.T) {
	m, err := NewManager(newSeries(t, "rb", time.Second))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Tick(), ErrNotActivated)
}

func TestManagerStateRoundTrip(t *testing.T) {
	fine := newSeries(t, "rb", time.Second)
	m, err := NewManager(fine)
	require.NoError(t, err)
	require.NoError(t, m.Activate([][]Row{rows(seq(0, 5)...)}))
	m.Bind(&fakeClock{now: at(2)})
	require.NoError(t, m.Reset())

	restored, err := ManagerFromState(m.State())
	require.NoError(t, err)
	s, err := restored.Driver("rb")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Cursor())
	assert.Equal(t, m.State(), restored.State())
}
