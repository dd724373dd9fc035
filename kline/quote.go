package kline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeField is the column holding the row timestamp.
const TimeField = "datetime"

// Row is one raw market observation handed to Activate.
type Row struct {
	Time   time.Time
	Fields map[string]decimal.Decimal
}

// Quote is an immutable snapshot of the row under a series cursor.
type Quote struct {
	Time   time.Time
	fields map[string]decimal.Decimal
}

func NewQuote(t time.Time, fields map[string]decimal.Decimal) Quote {
	cp := make(map[string]decimal.Decimal, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Quote{Time: t, fields: cp}
}

// Get returns a named field. Fields missing from the source row are absent.
func (q Quote) Get(name string) (decimal.Decimal, bool) {
	v, ok := q.fields[name]
	return v, ok
}

// MustGet panics when the field is absent.
func (q Quote) MustGet(name string) decimal.Decimal {
	v, ok := q.fields[name]
	if !ok {
		panic(fmt.Sprintf("quote at %s has no field %q", q.Time.Format(time.RFC3339), name))
	}
	return v
}

// Names lists the fields present in the quote, sorted.
func (q Quote) Names() []string {
	out := make([]string, 0, len(q.fields))
	for k := range q.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeColumn strips instrument prefixes: "SHFE.rb2605.last_price"
// becomes "last_price".
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
