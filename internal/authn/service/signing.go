package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/idx"
	"github.com/farelight/zkauth/pkg/slogx"
)

var (
	// ErrSessionNotFound means no session exists for the id, or it was
	// revoked.
	ErrSessionNotFound = errors.New("service: session not found")

	// ErrSessionExpired means the session's epoch bound has passed. The key
	// material still exists until housekeeping sweeps it, but signing with
	// it would produce a bundle the network rejects.
	ErrSessionExpired = errors.New("service: session expired")

	// ErrEmptyPayload rejects signing requests with no transaction bytes.
	ErrEmptyPayload = errors.New("service: empty transaction payload")
)

// SignatureBundle is everything a verifier needs alongside the transaction:
// the ephemeral signature, the proof tying the ephemeral key to the derived
// address, the token coordinates the proof was issued against, and the epoch
// bound all of them share.
type SignatureBundle struct {
	Address            domain.Address
	Signature          []byte
	EphemeralPublicKey ed25519.PublicKey
	Proof              domain.ZkProof
	Issuer             string
	Audience           string
	Kid                string
	MaxEpoch           uint64
}

// TransactionSigner signs transaction payloads with a stored session's
// ephemeral key and packages the result for on-chain verification.
type TransactionSigner struct {
	Store  store.Store
	Epochs epoch.Source
}

// Sign signs payload under the session's ephemeral key. The session must
// exist and its bound must not have passed at the current epoch.
func (t *TransactionSigner) Sign(ctx context.Context, sessionID idx.ID, payload []byte) (SignatureBundle, error) {
	if len(payload) == 0 {
		return SignatureBundle{}, ErrEmptyPayload
	}

	current, err := t.Epochs.Current(ctx)
	if err != nil {
		return SignatureBundle{}, fmt.Errorf("service: reading current epoch: %w", err)
	}

	sess, err := t.Store.Sessions().Get(ctx, sessionID, current)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return SignatureBundle{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	case errors.Is(err, store.ErrExpired):
		return SignatureBundle{}, fmt.Errorf("%w: %s at epoch %d", ErrSessionExpired, sessionID, current)
	case err != nil:
		return SignatureBundle{}, err
	}

	sig := ed25519.Sign(sess.KeyPair.PrivateKey, payload)

	slogx.FromContext(ctx).Debug("transaction signed",
		"session_id", sessionID,
		"address", sess.Address,
		"payload_bytes", len(payload),
	)

	return AssembleBundle(sess, sig), nil
}

// AssembleBundle packages a signature with the session's proof and epoch
// bound. Pure; it performs no validity checks of its own.
func AssembleBundle(sess domain.Session, signature []byte) SignatureBundle {
	return SignatureBundle{
		Address:            sess.Address,
		Signature:          signature,
		EphemeralPublicKey: sess.KeyPair.PublicKey,
		Proof:              sess.Proof,
		Issuer:             sess.Token.Issuer,
		Audience:           sess.Token.Audience,
		Kid:                sess.Token.Kid,
		MaxEpoch:           sess.MaxEpoch,
	}
}
