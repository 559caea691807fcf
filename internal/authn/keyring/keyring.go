// Package keyring creates the per-attempt ephemeral signing keys and the
// nonce that binds a key pair to a provider login round trip.
package keyring

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/pkg/cryptox"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidEpochBound reports a maxEpoch at or below the current epoch.
// Callers must pick a bound strictly in the future.
var ErrInvalidEpochBound = errors.New("keyring: max epoch must be in the future")

// NonceLength is the length of the derived nonce string: 20 bytes of
// blake2b-256 output, base64url encoded.
const NonceLength = 27

// Factory mints ephemeral key pairs bounded by the network's epoch clock.
type Factory struct {
	Epochs epoch.Source
}

// Create generates a fresh ed25519 key pair with random blinding entropy,
// valid through maxEpoch inclusive. The caller owns the result; nothing is
// registered anywhere until a completed session is saved.
func (f *Factory) Create(ctx context.Context, maxEpoch uint64) (domain.EphemeralKeyPair, error) {
	current, err := f.Epochs.Current(ctx)
	if err != nil {
		return domain.EphemeralKeyPair{}, fmt.Errorf("keyring: reading current epoch: %w", err)
	}
	if maxEpoch <= current {
		return domain.EphemeralKeyPair{}, fmt.Errorf("%w: max %d, current %d",
			ErrInvalidEpochBound, maxEpoch, current)
	}

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.EphemeralKeyPair{}, fmt.Errorf("keyring: generating key pair: %w", err)
	}

	randomness, err := cryptox.RandomBytes(cryptox.Size128)
	if err != nil {
		return domain.EphemeralKeyPair{}, fmt.Errorf("keyring: generating randomness: %w", err)
	}

	return domain.EphemeralKeyPair{
		PublicKey:     public,
		PrivateKey:    private,
		MaxEpoch:      maxEpoch,
		JWTRandomness: randomness,
	}, nil
}

// Nonce derives the attempt nonce from a key pair. It is a pure one-way
// function of (public key, max epoch, randomness); the provider echoes it
// back inside the identity token, which is how a token gets bound to exactly
// one key pair.
func Nonce(kp domain.EphemeralKeyPair) string {
	h, _ := blake2b.New256(nil)
	h.Write(kp.PublicKey)

	var bound [8]byte
	binary.BigEndian.PutUint64(bound[:], kp.MaxEpoch)
	h.Write(bound[:])

	h.Write(kp.JWTRandomness)

	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:20])
}
