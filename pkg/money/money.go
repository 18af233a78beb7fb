// Package money converts between decimal currency text and integer
// minor-unit amounts. All auction prices are stored as int64 cents.
package money

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pricePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// Error is a money codec failure.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrInvalidFormat means the input does not match the 0.00 grammar.
	ErrInvalidFormat Error = "amount must match 0.00 format"
	// ErrOutOfRange means the amount overflows the supported cent range.
	ErrOutOfRange Error = "amount exceeds supported range"
)

// ParseCents parses decimal currency text into cents.
// Accepts 0–2 fractional digits; a single fractional digit is treated as
// tens of cents ("10.5" == 1050).
func ParseCents(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if !pricePattern.MatchString(trimmed) {
		return 0, ErrInvalidFormat
	}

	majorText, minorText, hasMinor := strings.Cut(trimmed, ".")
	major, err := strconv.ParseInt(majorText, 10, 64)
	if err != nil {
		// Pattern-valid digits that still fail to parse can only overflow.
		return 0, ErrOutOfRange
	}

	var minor int64
	if hasMinor {
		if len(minorText) == 1 {
			minorText += "0"
		}
		minor, err = strconv.ParseInt(minorText, 10, 64)
		if err != nil {
			return 0, ErrOutOfRange
		}
	}

	const maxMajor = (1<<63 - 1) / 100
	if major > maxMajor || major*100 > (1<<63-1)-minor {
		return 0, ErrOutOfRange
	}
	return major*100 + minor, nil
}

// FormatCents renders cents as a fixed two-decimal currency string.
func FormatCents(cents int64) string {
	return fmt.Sprintf("AED %d.%02d", cents/100, cents%100)
}
