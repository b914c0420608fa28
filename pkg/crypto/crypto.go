package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// encryptedPrefix marca los valores cifrados para distinguirlos de texto plano heredado
const encryptedPrefix = "enc:v1:"

var ErrMalformedCipherText = errors.New("malformed cipher text")

// Box encrypts tenant secrets at rest with AES-256-GCM.
// A Box built from an empty key is a passthrough.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives a 32-byte key from secret with SHA-256.
func NewBox(secret string) (*Box, error) {
	if secret == "" {
		return &Box{}, nil
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: gcm}, nil
}

// Enabled reports whether values are actually encrypted.
func (b *Box) Enabled() bool {
	return b != nil && b.aead != nil
}

// Encrypt returns "enc:v1:" + base64(nonce|ciphertext). Empty input stays empty.
func (b *Box) Encrypt(plainText string) (string, error) {
	if !b.Enabled() || plainText == "" {
		return plainText, nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned as is.
func (b *Box) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if !b.Enabled() {
		return "", errors.New("encrypted value found but no secret key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", ErrMalformedCipherText
	}

	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrMalformedCipherText
	}

	nonce, cipherText := data[:nonceSize], data[nonceSize:]
	plain, err := b.aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
