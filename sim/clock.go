package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradegym/kline"
)

// Clock is the single timeline of a run. Consumers read Now after a Tick;
// nothing is pushed to them.
type Clock struct {
	now  time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) (*Clock, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStep, step)
	}
	return &Clock{now: start, step: step}, nil
}

func (c *Clock) Now() time.Time      { return c.now }
func (c *Clock) Step() time.Duration { return c.step }

// Tick advances the clock by one step and returns the new time.
func (c *Clock) Tick() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// Set moves the clock to t. Only reset uses it, to start a new run.
func (c *Clock) Set(t time.Time) {
	c.now = t
}

type ClockState struct {
	Now  time.Time `json:"now"`
	Step float64   `json:"step"`
}

func (c *Clock) State() ClockState {
	return ClockState{Now: c.now, Step: kline.Seconds(c.step)}
}

func ClockFromState(st ClockState) (*Clock, error) {
	return NewClock(st.Now, kline.Duration(st.Step))
}
