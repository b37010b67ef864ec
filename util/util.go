// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"time"
)

// Clamp limits input to the range [low, high]
func Clamp(input, low, high float64) float64 {
	if input < low {
		return low
	} else if input > high {
		return high
	}
	return input
}

// ClampInt is Clamp for ints
func ClampInt(input, low, high int) int {
	if input < low {
		return low
	} else if input > high {
		return high
	}
	return input
}

// DurationToMillis converts a duration to a whole number of milliseconds,
// truncating any remainder
func DurationToMillis(d time.Duration) int {
	return int(d / time.Millisecond)
}

// MillisString formats a duration as a base-10 count of milliseconds,
// e.g. 250ms => "250"
func MillisString(d time.Duration) string {
	return strconv.Itoa(DurationToMillis(d))
}

// Limiter is a closed range of allowed values
type Limiter struct {
	Min float64 `json:"min" koanf:"min" yaml:"min"`
	Max float64 `json:"max" koanf:"max" yaml:"max"`
}

// Check returns true if Min <= input <= Max
func (l Limiter) Check(input float64) bool {
	return input >= l.Min && input <= l.Max
}

// Clamp limits input to [Min, Max]
func (l Limiter) Clamp(input float64) float64 {
	return Clamp(input, l.Min, l.Max)
}
