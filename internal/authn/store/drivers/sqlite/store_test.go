package sqlite_test

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"
	"time"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/internal/authn/store/drivers/sqlite"
	"github.com/farelight/zkauth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "zkauth.db")
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testSession(t *testing.T, maxEpoch uint64) domain.Session {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	return domain.Session{
		ID:       idx.New(),
		Provider: "google",
		Network:  domain.NetworkDevnet,
		KeyPair: domain.EphemeralKeyPair{
			PublicKey:     pub,
			PrivateKey:    priv,
			MaxEpoch:      maxEpoch,
			JWTRandomness: []byte("0123456789abcdef"),
		},
		Token: domain.IdentityToken{
			Raw:           "eyJ.header.payload",
			Issuer:        "https://accounts.google.com",
			Audience:      "client-abc",
			Subject:       "sub-42",
			KeyClaimValue: "sub-42",
			Nonce:         "nonce-" + string(idx.New()),
			Kid:           "kid-1",
		},
		Salt:      []byte("sixteen byte salt"),
		Proof:     domain.ZkProof{ProofBytes: []byte("p"), PublicInputDigest: []byte("d")},
		Address:   "0xabc",
		MaxEpoch:  maxEpoch,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSessions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sess := testSession(t, 100)

	require.NoError(t, st.Sessions().Create(ctx, sess))

	got, err := st.Sessions().Get(ctx, sess.ID, 100)
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)
	require.Equal(t, sess.Address, got.Address)
	require.Equal(t, sess.Token, got.Token)

	// Sealed columns round-trip back to the plaintext key material.
	require.Equal(t, sess.KeyPair.PrivateKey, got.KeyPair.PrivateKey)
	require.Equal(t, sess.Salt, got.Salt)
}

func TestSessions_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sess := testSession(t, 100)

	require.NoError(t, st.Sessions().Create(ctx, sess))

	_, err := st.Sessions().Get(ctx, sess.ID, 101)
	require.ErrorIs(t, err, store.ErrExpired)

	// Still present until housekeeping sweeps it.
	_, err = st.Sessions().Get(ctx, sess.ID, 100)
	require.NoError(t, err)

	require.NoError(t, st.Sessions().DeleteExpired(ctx, 101))
	_, err = st.Sessions().Get(ctx, sess.ID, 100)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_DuplicateAndRevoke(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sess := testSession(t, 100)

	require.NoError(t, st.Sessions().Create(ctx, sess))
	require.ErrorIs(t, st.Sessions().Create(ctx, sess), store.ErrAlreadyExists)

	require.NoError(t, st.Sessions().Revoke(ctx, sess.ID))
	require.ErrorIs(t, st.Sessions().Revoke(ctx, sess.ID), store.ErrNotFound)
	_, err := st.Sessions().Get(ctx, sess.ID, 100)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_ListActive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	early := testSession(t, 50)
	early.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	live := testSession(t, 100)
	expired := testSession(t, 10)

	require.NoError(t, st.Sessions().Create(ctx, early))
	require.NoError(t, st.Sessions().Create(ctx, live))
	require.NoError(t, st.Sessions().Create(ctx, expired))

	active, err := st.Sessions().ListActive(ctx, 20)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, early.ID, active[0].ID, "ordered by creation time")
}

func TestNonces_SingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Nonces().MarkUsed(ctx, "nonce-1", 100))
	require.ErrorIs(t, st.Nonces().MarkUsed(ctx, "nonce-1", 100), store.ErrAlreadyExists)
	require.ErrorIs(t, st.Nonces().MarkUsed(ctx, "nonce-1", 200), store.ErrAlreadyExists)

	require.NoError(t, st.Nonces().DeleteExpired(ctx, 101))
	require.NoError(t, st.Nonces().MarkUsed(ctx, "nonce-1", 300))
}

func TestStore_Ping(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
}
