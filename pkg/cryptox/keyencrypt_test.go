package cryptox_test

import (
	"testing"

	"github.com/farelight/zkauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	plaintext := []byte("ephemeral ed25519 seed material")

	sealed, err := cryptox.Seal(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)
	require.Greater(t, len(sealed), len(plaintext)) // nonce + tag overhead

	opened, err := cryptox.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSeal_NonDeterministic(t *testing.T) {
	plaintext := []byte("same input")

	a, err := cryptox.Seal(plaintext)
	require.NoError(t, err)
	b, err := cryptox.Seal(plaintext)
	require.NoError(t, err)

	// Random nonce per call means ciphertexts must differ.
	require.NotEqual(t, a, b)
}

func TestOpen_RejectsTampering(t *testing.T) {
	sealed, err := cryptox.Seal([]byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff

	_, err = cryptox.Open(sealed)
	require.Error(t, err)
}

func TestOpen_RejectsTruncated(t *testing.T) {
	_, err := cryptox.Open([]byte{0x01, 0x02})
	require.Error(t, err)
}
