package domain

import "slices"

// Network identifies a target blockchain network for a login session.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

// Valid reports whether n is one of the known networks.
func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return true
	}
	return false
}

// ProviderConfig is the static per-identity-provider configuration. Entries
// are immutable and loaded at process start; there is one per supported
// OpenID provider.
type ProviderConfig struct {
	ID                    string    // short provider id, e.g. "google"
	AuthorizationEndpoint string    // OAuth authorization endpoint URL
	ClientIDEnvKey        string    // env var holding the registered client id
	KeyClaimName          string    // claim bound into the proof, usually "sub"
	SupportedNetworks     []Network // networks this provider is enabled on
}

// SupportsNetwork reports whether the provider is enabled on network n.
func (p ProviderConfig) SupportsNetwork(n Network) bool {
	return slices.Contains(p.SupportedNetworks, n)
}
