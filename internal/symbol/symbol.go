// Package symbol handles asset ticker symbol validation and
// normalization.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches 2-6 uppercase letters, e.g. "RGRV" or "JOKR".
var symbolRegex = regexp.MustCompile(`^[A-Z]{2,6}$`)

// ErrInvalidSymbol is returned when a symbol does not match the allowed
// format.
var ErrInvalidSymbol = errors.New("symbol: invalid ticker symbol")

// Normalize uppercases and trims a raw symbol string.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Parse normalizes and validates a ticker symbol.
func Parse(raw string) (string, error) {
	s := Normalize(raw)
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected 2-6 uppercase letters)", ErrInvalidSymbol, raw)
	}
	return s, nil
}
