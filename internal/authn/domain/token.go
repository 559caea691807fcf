package domain

// IdentityToken is the parsed, unverified identity token returned by a
// provider redirect. The authenticator never re-signs or verifies it
// cryptographically; it is treated as opaque input to the proving service.
// The only local check is that the embedded nonce matches the nonce of the
// attempt's own ephemeral key pair.
type IdentityToken struct {
	Raw string // compact JWT as received, forwarded verbatim to the prover

	Issuer        string
	Audience      string
	Subject       string
	KeyClaimValue string // value of the provider's key claim (usually == Subject)
	Nonce         string
	Kid           string // signing key id from the JOSE header
}
