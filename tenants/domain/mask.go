package domain

import "strings"

const maskPrefix = "***"

// MaskSecret deja visibles solo los últimos 4 caracteres.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return maskPrefix
	}
	return maskPrefix + s[len(s)-4:]
}

// IsMasked reports whether s looks like a value produced by MaskSecret.
func IsMasked(s string) bool {
	return strings.HasPrefix(s, maskPrefix)
}
