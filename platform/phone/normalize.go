// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Digits strips everything except digits. Used to match free-text numeric
// search terms against stored phone numbers regardless of formatting.
func Digits(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsDigitsOnly reports whether the trimmed input consists solely of digits
// (ignoring spaces, dashes, parentheses and a leading plus sign).
func IsDigitsOnly(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	trimmed = strings.TrimPrefix(trimmed, "+")

	seen := false
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			seen = true
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return seen
}
