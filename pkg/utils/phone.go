package utils

import "strings"

// NormalizePhone returns the canonical stored form of a phone number:
// surrounding whitespace trimmed and a leading "+" added when missing.
// Empty input stays empty.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}

// SanitizePhone normalizes the phone in place. Used by handlers on request DTOs.
func SanitizePhone(phone *string) {
	if phone == nil {
		return
	}
	*phone = NormalizePhone(*phone)
}

// DigitsOnly strips everything but 0-9, the form the Cloud API expects in "to".
func DigitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}
