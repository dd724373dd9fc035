package kline

import (
	"fmt"
	"time"
)

// TimeSource is whatever the manager synchronizes cursors to.
type TimeSource interface {
	Now() time.Time
}

// Manager owns every series of a run, possibly several timesteps per
// instrument, and keeps their cursors in step with a TimeSource.
type Manager struct {
	series []*Series
	clock  TimeSource
}

func NewManager(series ...*Series) (*Manager, error) {
	m := &Manager{}
	for _, s := range series {
		if err := m.Add(s); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add registers a series. A second series with the same code and
// timestep is rejected.
func (m *Manager) Add(s *Series) error {
	for _, have := range m.series {
		if have.code == s.code && have.timestep == s.timestep {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, s.name())
		}
	}
	m.series = append(m.series, s)
	return nil
}

// Bind sets the time source used by Reset and Tick.
func (m *Manager) Bind(clock TimeSource) {
	m.clock = clock
}

// Series returns all series in registration order.
func (m *Manager) Series() []*Series {
	out := make([]*Series, len(m.series))
	copy(out, m.series)
	return out
}

// Codes lists instrument codes in first-registration order.
func (m *Manager) Codes() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range m.series {
		if !seen[s.code] {
			seen[s.code] = true
			out = append(out, s.code)
		}
	}
	return out
}

// Get returns the first series registered for code.
func (m *Manager) Get(code string) (*Series, error) {
	for _, s := range m.series {
		if s.code == code {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
}

// GetTimestep returns the series for code with exactly the given timestep.
func (m *Manager) GetTimestep(code string, timestep time.Duration) (*Series, error) {
	for _, s := range m.series {
		if s.code == code && s.timestep == timestep {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s@%gs", ErrNotFound, code, Seconds(timestep))
}

// Driver returns the finest-timestep series for code.
func (m *Manager) Driver(code string) (*Series, error) {
	var best *Series
	for _, s := range m.series {
		if s.code != code {
			continue
		}
		if best == nil || s.timestep < best.timestep {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return best, nil
}

// Activate loads one row set per series, in registration order.
func (m *Manager) Activate(sets [][]Row) error {
	if len(sets) != len(m.series) {
		return fmt.Errorf("%w: %d row sets for %d series", ErrConfigMismatch, len(sets), len(m.series))
	}
	for i, s := range m.series {
		if err := s.Activate(sets[i]); err != nil {
			return err
		}
	}
	return nil
}

// Reset rewinds every cursor and relocates it to the current clock time.
func (m *Manager) Reset() error {
	for _, s := range m.series {
		s.Reset()
	}
	return m.locate()
}

// Tick relocates every cursor to the already advanced clock time.
func (m *Manager) Tick() error {
	return m.locate()
}

func (m *Manager) locate() error {
	if m.clock == nil {
		return fmt.Errorf("%w: manager has no time source", ErrNotActivated)
	}
	now := m.clock.Now()
	for _, s := range m.series {
		if err := s.Locate(now); err != nil {
			return err
		}
	}
	return nil
}

// CalcLatestStartTime is the earliest instant at which every instrument's
// driver series has data: the max over instruments of the driver's first
// row time.
func (m *Manager) CalcLatestStartTime() (time.Time, error) {
	var latest time.Time
	for _, code := range m.Codes() {
		d, err := m.Driver(code)
		if err != nil {
			return time.Time{}, err
		}
		if !d.Activated() {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotActivated, d.name())
		}
		if first := d.times[0]; first.After(latest) {
			latest = first
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no series registered", ErrNotFound)
	}
	return latest, nil
}

// Terminated reports whether any driver series has reached its last row.
func (m *Manager) Terminated() bool {
	for _, code := range m.Codes() {
		if d, err := m.Driver(code); err == nil && d.Terminated() {
			return true
		}
	}
	return false
}

type ManagerState struct {
	Series []SeriesState `json:"series"`
}

func (m *Manager) State() ManagerState {
	st := ManagerState{Series: make([]SeriesState, 0, len(m.series))}
	for _, s := range m.series {
		st.Series = append(st.Series, s.State())
	}
	return st
}

// ManagerFromState rebuilds a manager. The time source must be bound by
// the caller.
func ManagerFromState(st ManagerState) (*Manager, error) {
	m := &Manager{}
	for _, ss := range st.Series {
		s, err := SeriesFromState(ss)
		if err != nil {
			return nil, err
		}
		if err := m.Add(s); err != nil {
			return nil, err
		}
	}
	return m, nil
}
