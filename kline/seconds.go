package kline

import (
	"math"
	"time"
)

// Seconds converts a duration to fractional seconds, the unit durations
// are serialized in.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts fractional seconds to a duration, rounded to the
// nearest nanosecond.
func Duration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
