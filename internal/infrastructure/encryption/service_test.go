package encryption

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_EncryptDecrypt(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"hex key", strings.Repeat("ab", 32)},
		{"passphrase", "correct horse battery staple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.key)
			require.NoError(t, err)

			enc, err := svc.Encrypt("jane@example.com")
			require.NoError(t, err)
			assert.NotContains(t, enc, "jane")

			again, err := svc.Encrypt("jane@example.com")
			require.NoError(t, err)
			assert.NotEqual(t, enc, again, "nonces must differ")

			dec, err := svc.Decrypt(enc)
			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", dec)
		})
	}
}

func TestService_RejectsForeignCiphertext(t *testing.T) {
	a, err := NewService("key-a")
	require.NoError(t, err)
	b, err := NewService("key-b")
	require.NoError(t, err)

	enc, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	assert.Error(t, err)

	_, err = a.Decrypt("not base64!")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext))

	_, err = a.Decrypt("AAAA")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext))
}

func TestNewService_RequiresKey(t *testing.T) {
	_, err := NewService("")
	assert.Error(t, err)
}
