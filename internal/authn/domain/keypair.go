package domain

import (
	"crypto/ed25519"
	"log/slog"
)

// EphemeralKeyPair is a short-lived ed25519 signing key pair created fresh
// per login attempt. Its lifetime is bounded by MaxEpoch, an epoch number on
// the target network rather than a wall-clock instant.
//
// The private key must never be persisted outside the session store and must
// never appear in logs.
type EphemeralKeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	MaxEpoch   uint64

	// JWTRandomness is blinding entropy mixed into the nonce so the provider
	// round trip cannot be linked to the bare public key.
	JWTRandomness []byte
}

// LogValue redacts key material when a key pair ends up in a log record.
func (kp EphemeralKeyPair) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("max_epoch", kp.MaxEpoch),
		slog.String("private_key", "[redacted]"),
	)
}
