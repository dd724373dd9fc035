package kline

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ReadCSV parses quote rows. The datetime column is required; every other
// column becomes a numeric field under its normalized name. Empty and
// "nan" cells are left out of the row. Timestamps without a zone are read
// in loc (UTC when nil).
func ReadCSV(r io.Reader, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.UTC
	}
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("read quotes: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row := Row{Fields: make(map[string]decimal.Decimal, len(rec))}
		hasTime := false
		for col, raw := range rec {
			name := NormalizeColumn(col)
			raw = strings.TrimSpace(raw)
			if name == TimeField {
				t, err := ParseTime(raw, loc)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, i+2, err)
				}
				row.Time = t
				hasTime = true
				continue
			}
			if raw == "" || strings.EqualFold(raw, "nan") {
				continue
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrBadRow, i+2, col, err)
			}
			row.Fields[name] = v
		}
		if !hasTime {
			return nil, fmt.Errorf("%w: line %d: missing %s column", ErrBadRow, i+2, TimeField)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCSVFile reads quote rows from a file.
func LoadCSVFile(path string, loc *time.Location) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ReadCSV(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ParseTime accepts RFC3339, "YYYY-MM-DD hh:mm:ss[.fff]" and integer epochs
// (nanoseconds when 16 digits or more, seconds otherwise). A nil loc is
// UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		digits := len(strings.TrimPrefix(s, "-"))
		if digits >= 16 {
			return time.Unix(0, n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
