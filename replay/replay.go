// Package replay drives an Engine from a script of timed trade events.
package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rustyeddy/tradegym/account"
	"github.com/rustyeddy/tradegym/kline"
	"github.com/rustyeddy/tradegym/market"
	"github.com/rustyeddy/tradegym/sim"
	"github.com/shopspring/decimal"
)

// Kind is the action an event performs.
type Kind string

const (
	Open     Kind = "OPEN"
	Close    Kind = "CLOSE"
	CloseAll Kind = "CLOSE_ALL"
)

// Event is one scripted action. A zero Price trades at the engine's market
// price; a zero Volume on Close closes everything open on that side.
type Event struct {
	Time   time.Time
	Kind   Kind
	Code   string
	Side   market.Side
	Price  decimal.NullDecimal
	Volume int64
}

type eventRow struct {
	Time   string `csv:"time"`
	Event  string `csv:"event"`
	Code   string `csv:"code"`
	Side   string `csv:"side"`
	Price  string `csv:"price"`
	Volume string `csv:"volume"`
}

// ReadEvents parses an event script with the columns
//
//	time,event,code,side,price,volume
//
// Events are OPEN, CLOSE and CLOSE_ALL, in any case. Timestamps without a
// zone are read in loc. The result is sorted by time, ties kept in file
// order.
func ReadEvents(r io.Reader, loc *time.Location) ([]Event, error) {
	var rows []*eventRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for i, row := range rows {
		ev, err := row.parse(loc)
		if err != nil {
			return nil, fmt.Errorf("events line %d: %w", i+2, err)
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events, nil
}

// LoadEventsFile reads an event script from path.
func LoadEventsFile(path string, loc *time.Location) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEvents(f, loc)
}

func (row *eventRow) parse(loc *time.Location) (Event, error) {
	var ev Event

	t, err := kline.ParseTime(strings.TrimSpace(row.Time), loc)
	if err != nil {
		return ev, err
	}
	ev.Time = t
	ev.Kind = Kind(strings.ToUpper(strings.TrimSpace(row.Event)))

	switch ev.Kind {
	case CloseAll:
		return ev, nil
	case Open, Close:
	default:
		return ev, fmt.Errorf("unknown event %q", row.Event)
	}

	ev.Code = strings.TrimSpace(row.Code)
	if ev.Code == "" {
		return ev, fmt.Errorf("%s: code is empty", ev.Kind)
	}
	if ev.Side, err = market.ParseSide(row.Side); err != nil {
		return ev, fmt.Errorf("%s: %w", ev.Kind, err)
	}
	if p := strings.TrimSpace(row.Price); p != "" {
		v, err := decimal.NewFromString(p)
		if err != nil {
			return ev, fmt.Errorf("%s: bad price %q: %w", ev.Kind, p, err)
		}
		ev.Price = decimal.NewNullDecimal(v)
	}
	if v := strings.TrimSpace(row.Volume); v != "" {
		ev.Volume, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ev, fmt.Errorf("%s: bad volume %q: %w", ev.Kind, v, err)
		}
	}
	if ev.Volume < 0 || (ev.Kind == Open && ev.Volume == 0) {
		return ev, fmt.Errorf("%s: volume must be positive", ev.Kind)
	}
	return ev, nil
}

// Options controls how a replay behaves.
type Options struct {
	// CloseAtEnd flattens every opened position once the data runs out.
	CloseAtEnd bool
	// StopOnReject ends the replay at the first rejected trade.
	StopOnReject bool
}

// Result is the outcome of a replay.
type Result struct {
	RunID   string
	Ticks   int
	Records []sim.TradeRecord
	// Unapplied counts events timed after the last quote.
	Unapplied int
	Final     account.Log
}

// Rejected counts the failed trade records.
func (r *Result) Rejected() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.Success {
			n++
		}
	}
	return n
}

// Run resets the engine and steps it until its data runs out or ctx is
// cancelled. At each step every event due at or before the clock time is
// applied, after the quotes have moved.
func Run(ctx context.Context, engine *sim.Engine, events []Event, opts Options) (*Result, error) {
	res := &Result{RunID: engine.RunID()}
	if err := engine.Reset(); err != nil {
		return res, err
	}

	next := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		now := engine.Now()
		for next < len(events) && !events[next].Time.After(now) {
			recs := apply(engine, events[next])
			res.Records = append(res.Records, recs...)
			if opts.StopOnReject {
				for _, rec := range recs {
					if !rec.Success {
						return res, fmt.Errorf("event %d %s rejected: %w", next, events[next].Kind, rec.Cause())
					}
				}
			}
			next++
		}

		if engine.Terminated() {
			break
		}
		if err := engine.Tick(); err != nil {
			return res, err
		}
		res.Ticks++
	}

	if opts.CloseAtEnd {
		res.Records = append(res.Records, engine.CloseAll()...)
	}
	res.Unapplied = len(events) - next
	res.Final = engine.Log()
	return res, nil
}

// apply performs one event. Events without a price trade at the engine's
// market price.
func apply(engine *sim.Engine, ev Event) []sim.TradeRecord {
	if ev.Kind == CloseAll {
		return engine.CloseAll()
	}

	volume := ev.Volume
	if ev.Kind == Close && volume == 0 {
		volume = sim.AllVolume
	}

	var rec sim.TradeRecord
	switch {
	case ev.Kind == Open && ev.Price.Valid:
		rec = engine.Open(ev.Code, ev.Side, ev.Price.Decimal, volume)
	case ev.Kind == Open:
		rec = engine.OpenAtMarket(ev.Code, ev.Side, volume)
	case ev.Price.Valid:
		rec = engine.Close(ev.Code, ev.Side, ev.Price.Decimal, volume)
	default:
		rec = engine.CloseAtMarket(ev.Code, ev.Side, volume)
	}
	return []sim.TradeRecord{rec}
}
