// Package provider holds the static identity-provider table. Provider
// fan-out is modeled as data, not per-provider code: a single orchestrator
// parameterized by ProviderConfig covers every entry here.
package provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/farelight/zkauth/internal/authn/domain"
)

// ErrUnknownProvider is returned when an unregistered provider id is
// requested. This is a caller bug, not a runtime condition.
var ErrUnknownProvider = errors.New("provider: unknown provider")

// Registry is a read-only lookup table of provider configurations, built
// once at process start.
type Registry struct {
	providers map[string]domain.ProviderConfig
}

// NewRegistry builds a registry from the given configs. Duplicate ids are
// rejected so a misconfigured deployment fails at startup rather than
// silently shadowing an entry.
func NewRegistry(configs ...domain.ProviderConfig) (*Registry, error) {
	providers := make(map[string]domain.ProviderConfig, len(configs))
	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, errors.New("provider: config with empty id")
		}
		if _, dup := providers[cfg.ID]; dup {
			return nil, fmt.Errorf("provider: duplicate id %q", cfg.ID)
		}
		providers[cfg.ID] = cfg
	}
	return &Registry{providers: providers}, nil
}

// Get returns the configuration for the given provider id.
func (r *Registry) Get(id string) (domain.ProviderConfig, error) {
	cfg, ok := r.providers[id]
	if !ok {
		return domain.ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return cfg, nil
}

// List returns all registered configs ordered by id.
func (r *Registry) List() []domain.ProviderConfig {
	out := make([]domain.ProviderConfig, 0, len(r.providers))
	for _, cfg := range r.providers {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var allNetworks = []domain.Network{domain.NetworkMainnet, domain.NetworkTestnet, domain.NetworkDevnet}

var testNetworks = []domain.Network{domain.NetworkTestnet, domain.NetworkDevnet}

// Default returns the built-in provider table.
func Default() *Registry {
	r, err := NewRegistry(
		domain.ProviderConfig{
			ID:                    "google",
			AuthorizationEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
			ClientIDEnvKey:        "ZKAUTH_GOOGLE_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     allNetworks,
		},
		domain.ProviderConfig{
			ID:                    "facebook",
			AuthorizationEndpoint: "https://www.facebook.com/v17.0/dialog/oauth",
			ClientIDEnvKey:        "ZKAUTH_FACEBOOK_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     allNetworks,
		},
		domain.ProviderConfig{
			ID:                    "twitch",
			AuthorizationEndpoint: "https://id.twitch.tv/oauth2/authorize",
			ClientIDEnvKey:        "ZKAUTH_TWITCH_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     allNetworks,
		},
		domain.ProviderConfig{
			ID:                    "apple",
			AuthorizationEndpoint: "https://appleid.apple.com/auth/authorize",
			ClientIDEnvKey:        "ZKAUTH_APPLE_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     allNetworks,
		},
		domain.ProviderConfig{
			ID:                    "slack",
			AuthorizationEndpoint: "https://slack.com/openid/connect/authorize",
			ClientIDEnvKey:        "ZKAUTH_SLACK_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "kakao",
			AuthorizationEndpoint: "https://kauth.kakao.com/oauth/authorize",
			ClientIDEnvKey:        "ZKAUTH_KAKAO_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "microsoft",
			AuthorizationEndpoint: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			ClientIDEnvKey:        "ZKAUTH_MICROSOFT_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "github",
			AuthorizationEndpoint: "https://github.com/login/oauth/authorize",
			ClientIDEnvKey:        "ZKAUTH_GITHUB_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "line",
			AuthorizationEndpoint: "https://access.line.me/oauth2/v2.1/authorize",
			ClientIDEnvKey:        "ZKAUTH_LINE_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "discord",
			AuthorizationEndpoint: "https://discord.com/oauth2/authorize",
			ClientIDEnvKey:        "ZKAUTH_DISCORD_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "amazon",
			AuthorizationEndpoint: "https://www.amazon.com/ap/oa",
			ClientIDEnvKey:        "ZKAUTH_AMAZON_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "salesforce",
			AuthorizationEndpoint: "https://login.salesforce.com/services/oauth2/authorize",
			ClientIDEnvKey:        "ZKAUTH_SALESFORCE_CLIENT_ID",
			KeyClaimName:          "sub",
			SupportedNetworks:     testNetworks,
		},
		domain.ProviderConfig{
			ID:                    "yahoo",
			AuthorizationEndpoint: "https://api.login.yahoo.com/oauth2/request_auth",
			ClientIDEnvKey:        "ZKAUTH_YAHOO_CLIENT_ID",
			KeyClaimName:          "email",
			SupportedNetworks:     testNetworks,
		},
	)
	if err != nil {
		// The built-in table is static; a duplicate here is a programming error.
		panic(err)
	}
	return r
}
