package store

import (
	"context"
	"errors"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrExpired is returned instead of a stale session once the current
	// epoch has passed the session's bound. Expired rows are not deleted
	// eagerly; housekeeping sweeps them.
	ErrExpired = errors.New("store: session expired")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite)
// implement this. Sessions are immutable after Create, which is what lets
// drivers get away with a single lock or row-level inserts and no
// per-session locking.
type Store interface {
	Sessions() Sessions
	Nonces() Nonces

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is still usable.
	Ping(ctx context.Context) error
}

type Sessions interface {
	// Create inserts a fully-completed session (token, salt, proof and
	// address all present). Partial sessions are never written.
	Create(ctx context.Context, s domain.Session) error

	// Get returns the session by id. Expiry is evaluated lazily against
	// currentEpoch: a present-but-expired session yields ErrExpired, never
	// the stale value.
	Get(ctx context.Context, id idx.ID, currentEpoch uint64) (domain.Session, error)

	// Revoke destroys the session and its key material.
	Revoke(ctx context.Context, id idx.ID) error

	// ListActive returns a snapshot of unexpired sessions ordered by
	// creation time. It is not a live view.
	ListActive(ctx context.Context, currentEpoch uint64) ([]domain.Session, error)

	// DeleteExpired removes sessions whose bound has passed (housekeeping).
	DeleteExpired(ctx context.Context, currentEpoch uint64) error
}

// Nonces is the single-use ledger for attempt nonces. A nonce marks at most
// one completed authentication; marking it twice fails, which is how reuse
// across two different key pairs is rejected.
type Nonces interface {
	// MarkUsed records the nonce as spent. ErrAlreadyExists on reuse.
	MarkUsed(ctx context.Context, nonce string, maxEpoch uint64) error

	// DeleteExpired drops spent nonces whose epoch bound has passed; a
	// future attempt could not replay them anyway.
	DeleteExpired(ctx context.Context, currentEpoch uint64) error
}

// IsValid reports whether the session exists and its bound has not passed.
func IsValid(ctx context.Context, sessions Sessions, id idx.ID, currentEpoch uint64) bool {
	_, err := sessions.Get(ctx, id, currentEpoch)
	return err == nil
}
