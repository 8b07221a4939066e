// Package combatpower turns human-entered combat power text into a number
// suitable for ordering players.
package combatpower

import (
	"errors"
	"strconv"
	"strings"
)

// Scale multipliers for the supported suffixes.
const (
	thousand = 1e3
	million  = 1e6
	billion  = 1e9
)

// Parse normalizes text such as "1.2M", "980k" or "42" into a float.
//
// Parse is total: input without a usable magnitude yields 0. Only the
// trailing K, M or B selects a multiplier; every other suffix letter is
// discarded before the magnitude is read.
func Parse(text string) float64 {
	clean := strip(strings.ToUpper(text))
	if clean == "" {
		return 0
	}

	multiplier := 1.0
	switch clean[len(clean)-1] {
	case 'K':
		multiplier = thousand
	case 'M':
		multiplier = million
	case 'B':
		multiplier = billion
	}

	digits := strings.Map(func(r rune) rune {
		if r == 'K' || r == 'M' || r == 'B' {
			return -1
		}
		return r
	}, clean)

	v, ok := leadingDecimal(digits)
	if !ok {
		return 0
	}
	return v * multiplier
}

// Compare orders two raw combat power strings by parsed value, highest first.
// It returns a negative number when a ranks ahead of b.
func Compare(a, b string) int {
	pa, pb := Parse(a), Parse(b)
	switch {
	case pa > pb:
		return -1
	case pa < pb:
		return 1
	}
	return 0
}

// strip keeps only digits, dots and the K/M/B suffix letters.
func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == 'K' || c == 'M' || c == 'B' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// leadingDecimal parses the longest prefix of s shaped like digits[.digits].
// "1.2.3" reads as 1.2 and ".5" as 0.5; a prefix without any digit is rejected.
func leadingDecimal(s string) (float64, bool) {
	end, sawDigit, sawDot := 0, false, false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			sawDigit = true
		} else if c == '.' && !sawDot {
			sawDot = true
		} else {
			break
		}
		end++
	}
	if !sawDigit {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// Overflow saturates to +Inf, which still orders correctly.
	return v, true
}
