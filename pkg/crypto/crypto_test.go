package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	box, err := NewBox("a-secret")
	require.NoError(t, err)
	require.True(t, box.Enabled())

	enc, err := box.Encrypt("EAAG-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, encryptedPrefix))
	assert.NotContains(t, enc, "EAAG-token")

	dec, err := box.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-token", dec)

	again, err := box.Encrypt("EAAG-token")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "random nonce per call")
}

func TestBox_PlainValuesPassThrough(t *testing.T) {
	box, err := NewBox("a-secret")
	require.NoError(t, err)

	dec, err := box.Decrypt("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", dec)

	enc, err := box.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)
}

func TestBox_WrongKey(t *testing.T) {
	a, _ := NewBox("key-a")
	b, _ := NewBox("key-b")

	enc, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	assert.Error(t, err)

	_, err = b.Decrypt(encryptedPrefix + "%%%")
	assert.ErrorIs(t, err, ErrMalformedCipherText)
}

func TestBox_Disabled(t *testing.T) {
	box, err := NewBox("")
	require.NoError(t, err)
	assert.False(t, box.Enabled())

	enc, err := box.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", enc)

	_, err = box.Decrypt(encryptedPrefix + "abc")
	assert.Error(t, err)
}
