package m235

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// PrefixLen is the number of echo/status characters that lead every reply
	// and are skipped before the numeric payload
	PrefixLen = 3

	// MaxCounts is the largest magnitude accepted when converting from mm
	MaxCounts = math.MaxInt32
)

var (
	// ErrEmptyReply is generated when a reply is blank after trimming
	ErrEmptyReply = errors.New("empty reply")

	// ErrShortReply is generated when a reply holds nothing past the echo prefix
	ErrShortReply = errors.New("reply has no payload after echo prefix")
)

// ParseReply extracts the integer payload of one reply line.
// The line is trimmed of whitespace and terminators, the first PrefixLen
// characters are discarded whatever they are, and the rest is parsed base 10.
func ParseReply(line []byte) (int, error) {
	s := strings.TrimSpace(string(line))
	if s == "" {
		return 0, ErrEmptyReply
	}
	if utf8.RuneCountInString(s) <= PrefixLen {
		return 0, ErrShortReply
	}
	skip := 0
	for i := 0; i < PrefixLen; i++ {
		_, size := utf8.DecodeRuneInString(s[skip:])
		skip += size
	}
	return strconv.Atoi(strings.TrimSpace(s[skip:]))
}

// CountsToMM converts a raw encoder position to millimeters
func CountsToMM(counts int) float64 {
	return float64(counts) / CountsPerMM
}

// MMToCounts converts millimeters to the nearest whole encoder count.
// mm must be finite and within MaxCounts; see checkedCounts.
func MMToCounts(mm float64) int {
	c := mm * CountsPerMM
	if c < 0 {
		return int(c - 0.5)
	}
	return int(c + 0.5)
}

// checkedCounts is MMToCounts for untrusted input.  NaN, infinities and
// magnitudes past MaxCounts return a ValidationError.
func checkedCounts(op string, mm float64) (int, error) {
	c := mm * CountsPerMM
	if math.IsNaN(c) || math.Abs(c) > MaxCounts {
		return 0, &ValidationError{Op: op, Value: mm, Reason: "not a finite distance within range"}
	}
	return MMToCounts(mm), nil
}
