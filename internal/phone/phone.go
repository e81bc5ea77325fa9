// Package phone normalizes raw phone input to E.164.
package phone

import "strings"

const (
	minDigits = 7
	maxDigits = 15
)

// Normalize converts a raw phone string to E.164 (a leading + followed only
// by digits) or returns an empty string when the input is not normalizable.
// A leading 00 is treated as an international dialing prefix and dropped,
// but only when the input did not already carry a +. No country code is
// inferred beyond that.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	hadPlus := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < minDigits || len(digits) > maxDigits {
		return ""
	}

	if !hadPlus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	return "+" + digits
}

// IsValid reports whether raw can be normalized to E.164.
func IsValid(raw string) bool {
	return Normalize(raw) != ""
}
