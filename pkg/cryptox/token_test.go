package cryptox_test

import (
	"encoding/base64"
	"testing"

	"github.com/farelight/zkauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	t.Parallel()

	t.Run("produces url-safe tokens of expected length", func(t *testing.T) {
		token, err := cryptox.RandomToken(cryptox.Size128)
		require.NoError(t, err)

		decoded, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		require.Len(t, decoded, cryptox.Size128)
	})

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := cryptox.RandomToken(0)
		require.Error(t, err)

		_, err = cryptox.RandomToken(-1)
		require.Error(t, err)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 100 {
			token := cryptox.MustRandomToken(cryptox.Size256)
			_, dup := seen[token]
			require.False(t, dup, "duplicate token generated")
			seen[token] = struct{}{}
		}
	})
}

func TestRandomBytes(t *testing.T) {
	t.Parallel()

	a, err := cryptox.RandomBytes(cryptox.Size256)
	require.NoError(t, err)
	require.Len(t, a, cryptox.Size256)

	b, err := cryptox.RandomBytes(cryptox.Size256)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
