package provider_test

import (
	"testing"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	reg := provider.Default()

	t.Run("known provider", func(t *testing.T) {
		cfg, err := reg.Get("google")
		require.NoError(t, err)
		require.Equal(t, "google", cfg.ID)
		require.Equal(t, "sub", cfg.KeyClaimName)
		require.NotEmpty(t, cfg.AuthorizationEndpoint)
		require.True(t, cfg.SupportsNetwork(domain.NetworkMainnet))
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := reg.Get("myspace")
		require.ErrorIs(t, err, provider.ErrUnknownProvider)
	})
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	all := provider.Default().List()
	require.Len(t, all, 13)

	// Ordered by id.
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := provider.NewRegistry(
			domain.ProviderConfig{ID: "dup"},
			domain.ProviderConfig{ID: "dup"},
		)
		require.Error(t, err)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := provider.NewRegistry(domain.ProviderConfig{})
		require.Error(t, err)
	})
}
