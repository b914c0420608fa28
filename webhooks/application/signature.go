package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/whatspy/whatspy/webhooks/domain"
)

const signaturePrefix = "sha256="

// Sign returns the X-Hub-Signature-256 value Meta sends for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of the raw body.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return domain.ErrSecretNotSet
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return domain.ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return domain.ErrInvalidSignature
	}

	if !hmac.Equal([]byte(header), []byte(Sign(body, secret))) {
		return domain.ErrInvalidSignature
	}
	return nil
}
