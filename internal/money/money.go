package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned for amounts that are not positive decimals
// with at most two fractional digits.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxAmount is the largest amount, in minor units, a single deposit or send
// may move: 1,000,000,000.00.
const MaxAmount int64 = 100_000_000_000

// Parse converts a decimal string such as "100.00" or "100,5" into minor
// units. Only positive amounts up to MaxAmount are accepted.
func Parse(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	s = strings.Replace(s, ",", ".", 1)

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (frac == "" || len(frac) > 2) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > MaxAmount/100 {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidAmount, raw, Format(MaxAmount))
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	total := units*100 + cents
	if total <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if total > MaxAmount {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidAmount, raw, Format(MaxAmount))
	}
	return total, nil
}

// Format renders minor units as a two-decimal string.
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ToFloat converts minor units to a major-unit float for rate arithmetic.
func ToFloat(cents int64) float64 {
	return float64(cents) / 100
}

// FromFloat rounds a major-unit float to the nearest minor unit.
func FromFloat(v float64) int64 {
	return int64(math.Round(v * 100))
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
