package market

import (
	"fmt"
	"strings"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// ParseSide accepts "long"/"short" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	}
	return "", fmt.Errorf("invalid side %q, must be long or short", s)
}

func (s Side) Valid() bool {
	return s == Long || s == Short
}

// Direction is +1 for long and -1 for short.
func (s Side) Direction() int64 {
	if s == Short {
		return -1
	}
	return 1
}

// TradeType distinguishes opening from closing trades.
type TradeType string

const (
	Open  TradeType = "open"
	Close TradeType = "close"
)

func (t TradeType) Valid() bool {
	return t == Open || t == Close
}

// Status is the derived state of a position.
type Status string

const (
	Opened Status = "opened"
	Closed Status = "closed"
)
