package domain

import (
	"time"

	"github.com/farelight/zkauth/pkg/idx"
)

// Session is a completed authentication: token, salt, proof and derived
// address all present. The session store owns it for its lifetime. A session
// is never written in a partial state, so a stored session is always usable
// for signing until its epoch bound passes.
type Session struct {
	ID       idx.ID
	Provider string
	Network  Network

	KeyPair EphemeralKeyPair
	Token   IdentityToken
	Salt    []byte
	Proof   ZkProof
	Address Address

	MaxEpoch  uint64
	CreatedAt time.Time
}

// Expired reports whether the session's validity bound has passed at the
// given epoch. Sessions are valid through MaxEpoch inclusive.
func (s *Session) Expired(currentEpoch uint64) bool {
	return currentEpoch > s.MaxEpoch
}

// Nonce returns the nonce the session's key pair was bound to, as echoed in
// the identity token.
func (s *Session) Nonce() string {
	return s.Token.Nonce
}
