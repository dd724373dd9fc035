package kline

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Series is one fixed-timestep slice of market history for an instrument,
// navigated by a cursor that only moves forward within a run.
//
// Rows are stored column-wise. A cell missing from its source row is kept
// as an invalid NullDecimal so every column stays aligned with times.
type Series struct {
	code     string
	timestep time.Duration
	cursor   int

	times   []time.Time
	names   []string
	columns map[string][]decimal.NullDecimal
}

func NewSeries(code string, timestep time.Duration) (*Series, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: series code is required", ErrConfigMismatch)
	}
	if timestep <= 0 {
		return nil, fmt.Errorf("%w: series %s timestep must be positive", ErrConfigMismatch, code)
	}
	return &Series{code: code, timestep: timestep}, nil
}

func (s *Series) Code() string            { return s.code }
func (s *Series) Timestep() time.Duration { return s.timestep }
func (s *Series) Cursor() int             { return s.cursor }
func (s *Series) Len() int                { return len(s.times) }
func (s *Series) Activated() bool         { return len(s.times) > 0 }

// Columns lists the field names of the series, sorted.
func (s *Series) Columns() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Time returns the timestamp of row i.
func (s *Series) Time(i int) time.Time {
	return s.times[i]
}

// Row materializes row i.
func (s *Series) Row(i int) Row {
	fields := make(map[string]decimal.Decimal, len(s.names))
	for _, name := range s.names {
		if v := s.columns[name][i]; v.Valid {
			fields[name] = v.Decimal
		}
	}
	return Row{Time: s.times[i], Fields: fields}
}

// Quote returns the row under the cursor.
func (s *Series) Quote() (Quote, error) {
	if !s.Activated() {
		return Quote{}, fmt.Errorf("%w: %s", ErrNotActivated, s.name())
	}
	r := s.Row(s.cursor)
	return Quote{Time: r.Time, fields: r.Fields}, nil
}

// Terminated reports whether the cursor sits on the last row.
func (s *Series) Terminated() bool {
	return s.cursor+1 >= len(s.times)
}

// Reset moves the cursor back to the first row for a new run.
func (s *Series) Reset() {
	s.cursor = 0
}

// Activate loads raw rows, replacing any previous data. Rows are sorted by
// time; rows repeating an earlier timestamp are dropped (first one wins).
// The delta between the first two rows must equal the declared timestep.
func (s *Series) Activate(rows []Row) error {
	if len(rows) < 2 {
		return fmt.Errorf("%w: %s needs at least two rows, got %d", ErrConfigMismatch, s.name(), len(rows))
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	deduped := sorted[:0:0]
	for i, r := range sorted {
		if i > 0 && r.Time.Equal(sorted[i-1].Time) {
			continue
		}
		deduped = append(deduped, r)
	}
	if len(deduped) < 2 {
		return fmt.Errorf("%w: %s needs at least two distinct timestamps", ErrConfigMismatch, s.name())
	}

	if td := deduped[1].Time.Sub(deduped[0].Time); td != s.timestep {
		return fmt.Errorf("%w for %s: expect %gs, got %gs", ErrConfigMismatch, s.name(), Seconds(s.timestep), Seconds(td))
	}

	seen := map[string]struct{}{}
	var names []string
	for _, r := range deduped {
		for k := range r.Fields {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	times := make([]time.Time, len(deduped))
	columns := make(map[string][]decimal.NullDecimal, len(names))
	for _, name := range names {
		columns[name] = make([]decimal.NullDecimal, len(deduped))
	}
	for i, r := range deduped {
		times[i] = r.Time
		for k, v := range r.Fields {
			columns[k][i] = decimal.NullDecimal{Decimal: v, Valid: true}
		}
	}

	s.times = times
	s.names = names
	s.columns = columns
	s.cursor = 0
	return nil
}

// Locate moves the cursor forward to the row matching t. The cursor time
// never regresses. Gaps in the data (dropped rows) hold the cursor on the
// last row before the gap until t comes within one timestep of the next
// available row.
func (s *Series) Locate(t time.Time) error {
	if !s.Activated() {
		return fmt.Errorf("%w: %s", ErrNotActivated, s.name())
	}

	cur := s.times[s.cursor]
	if t.Before(cur) {
		return fmt.Errorf("%w: %s at %s, current %s", ErrOutOfOrder, s.name(), t.Format(time.RFC3339Nano), cur.Format(time.RFC3339Nano))
	}
	if t.Sub(cur) < s.timestep {
		return nil
	}

	last := len(s.times) - 1
	if s.cursor == last {
		return fmt.Errorf("%w: %s at %s, last %s", ErrOutOfRange, s.name(), t.Format(time.RFC3339Nano), cur.Format(time.RFC3339Nano))
	}

	if s.near(s.cursor+1, t) {
		s.cursor++
		return nil
	}

	// Clock jumped past several rows or into a gap.
	rest := s.times[s.cursor+1:]
	idx := s.cursor + sort.Search(len(rest), func(i int) bool {
		return rest[i].After(t)
	})
	if idx == s.cursor {
		return nil
	}
	if idx < last && s.near(idx+1, t) {
		idx++
	}
	if idx == last && t.Sub(s.times[last]) >= s.timestep {
		return fmt.Errorf("%w: %s at %s, last %s", ErrOutOfRange, s.name(), t.Format(time.RFC3339Nano), s.times[last].Format(time.RFC3339Nano))
	}
	s.cursor = idx
	return nil
}

// near reports whether row i lies strictly within one timestep of t,
// on either side.
func (s *Series) near(i int, t time.Time) bool {
	delta := t.Sub(s.times[i])
	if delta < 0 {
		delta = -delta
	}
	return delta < s.timestep
}

func (s *Series) name() string {
	return fmt.Sprintf("%s@%gs", s.code, Seconds(s.timestep))
}

// SeriesState is the serialized form of a Series.
type SeriesState struct {
	Code     string     `json:"code"`
	Timestep float64    `json:"timestep"`
	Cursor   int        `json:"cursor"`
	Rows     []RowState `json:"rows,omitempty"`
}

type RowState struct {
	Time   time.Time                  `json:"datetime"`
	Fields map[string]decimal.Decimal `json:"fields"`
}

func (s *Series) State() SeriesState {
	st := SeriesState{
		Code:     s.code,
		Timestep: Seconds(s.timestep),
		Cursor:   s.cursor,
	}
	for i := range s.times {
		r := s.Row(i)
		st.Rows = append(st.Rows, RowState{Time: r.Time, Fields: r.Fields})
	}
	return st
}

func SeriesFromState(st SeriesState) (*Series, error) {
	s, err := NewSeries(st.Code, Duration(st.Timestep))
	if err != nil {
		return nil, err
	}
	if len(st.Rows) == 0 {
		return s, nil
	}
	rows := make([]Row, len(st.Rows))
	for i, r := range st.Rows {
		rows[i] = Row{Time: r.Time, Fields: r.Fields}
	}
	if err := s.Activate(rows); err != nil {
		return nil, err
	}
	if st.Cursor < 0 || st.Cursor >= s.Len() {
		return nil, fmt.Errorf("%w: %s cursor %d outside [0,%d)", ErrOutOfRange, s.name(), st.Cursor, s.Len())
	}
	s.cursor = st.Cursor
	return s, nil
}
