package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farelight/zkauth/internal/authn/address"
	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/flow"
	"github.com/farelight/zkauth/internal/authn/keyring"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/idx"
	"github.com/farelight/zkauth/pkg/slogx"
)

var (
	// ErrUnknownAttempt is returned for a callback that names no in-flight
	// login attempt. Either it never existed or a prior failure already
	// discarded it.
	ErrUnknownAttempt = errors.New("service: unknown login attempt")

	// ErrUnsupportedNetwork means the provider is not enabled on the
	// requested network.
	ErrUnsupportedNetwork = errors.New("service: provider not enabled on network")

	// ErrNonceReused means the attempt's nonce already completed an earlier
	// authentication. The whole login is rejected; nothing is stored.
	ErrNonceReused = errors.New("service: nonce already used")
)

// DefaultValidityEpochs is how many epochs past the current one a new key
// pair stays valid when the caller does not choose a bound.
const DefaultValidityEpochs = 2

// SaltFetcher yields the per-identity salt. Implemented by salt.Client.
type SaltFetcher interface {
	FetchSalt(ctx context.Context, token domain.IdentityToken) ([]byte, error)
}

// ProofRequester yields the zero-knowledge proof for a fixed input tuple.
// Implemented by prover.Client.
type ProofRequester interface {
	RequestProof(ctx context.Context, token domain.IdentityToken, salt []byte,
		ephemeralPublicKey ed25519.PublicKey, maxEpoch uint64, keyClaimName string) (domain.ZkProof, error)
}

// LoginService orchestrates a full login: ephemeral key pair, provider round
// trip, salt lookup, proof generation, address derivation and finally one
// atomic session write. If any stage fails, nothing is persisted; the caller
// simply starts over.
type LoginService struct {
	Providers *provider.Registry
	Keys      *keyring.Factory
	Salts     SaltFetcher
	Prover    ProofRequester
	Store     store.Store
	Epochs    epoch.Source

	// RedirectURI is where the provider sends the user back; for a local
	// daemon this is a loopback URL.
	RedirectURI string

	// ValidityEpochs is the key pair lifetime beyond the current epoch.
	ValidityEpochs uint64

	mu       sync.Mutex
	inflight map[idx.ID]*flow.Attempt
}

// NewLoginService wires the orchestrator with default key pair validity.
func NewLoginService(
	providers *provider.Registry,
	keys *keyring.Factory,
	salts SaltFetcher,
	prover ProofRequester,
	st store.Store,
	epochs epoch.Source,
	redirectURI string,
) *LoginService {
	return &LoginService{
		Providers:      providers,
		Keys:           keys,
		Salts:          salts,
		Prover:         prover,
		Store:          st,
		Epochs:         epochs,
		RedirectURI:    redirectURI,
		ValidityEpochs: DefaultValidityEpochs,
		inflight:       make(map[idx.ID]*flow.Attempt),
	}
}

// BeginLoginResponse is handed back to the caller driving the browser.
type BeginLoginResponse struct {
	AttemptID        idx.ID
	AuthorizationURL string
	MaxEpoch         uint64
}

// BeginLogin mints a fresh key pair, binds its nonce into a provider
// authorization URL and registers the attempt as in flight. Nothing touches
// the session store yet.
func (s *LoginService) BeginLogin(ctx context.Context, providerID string, network domain.Network) (BeginLoginResponse, error) {
	cfg, err := s.Providers.Get(providerID)
	if err != nil {
		return BeginLoginResponse{}, err
	}
	if !cfg.SupportsNetwork(network) {
		return BeginLoginResponse{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedNetwork, providerID, network)
	}

	current, err := s.Epochs.Current(ctx)
	if err != nil {
		return BeginLoginResponse{}, fmt.Errorf("service: reading current epoch: %w", err)
	}

	validity := s.ValidityEpochs
	if validity == 0 {
		validity = DefaultValidityEpochs
	}
	maxEpoch := current + validity

	kp, err := s.Keys.Create(ctx, maxEpoch)
	if err != nil {
		return BeginLoginResponse{}, err
	}

	attempt := flow.NewAttempt(cfg, network, kp, keyring.Nonce(kp), s.RedirectURI)

	authURL, err := attempt.BuildAuthorizationURL()
	if err != nil {
		return BeginLoginResponse{}, err
	}

	s.mu.Lock()
	s.inflight[attempt.ID] = attempt
	s.mu.Unlock()

	slogx.FromContext(ctx).Info("login started",
		"attempt_id", attempt.ID,
		"provider", providerID,
		"network", network,
		"max_epoch", maxEpoch,
	)

	return BeginLoginResponse{
		AttemptID:        attempt.ID,
		AuthorizationURL: authURL,
		MaxEpoch:         maxEpoch,
	}, nil
}

// CompleteLogin consumes the provider redirect for an in-flight attempt and
// runs the rest of the pipeline: token validation, salt, proof, address,
// nonce ledger, session write. The attempt is always removed, success or
// not; every failure path requires a restart from a fresh key pair.
//
// The session row is the last write. A failure anywhere earlier leaves the
// store untouched, so no partial session is ever observable.
func (s *LoginService) CompleteLogin(ctx context.Context, attemptID idx.ID, rawRedirectURL string) (domain.Session, error) {
	s.mu.Lock()
	attempt, ok := s.inflight[attemptID]
	delete(s.inflight, attemptID)
	s.mu.Unlock()
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrUnknownAttempt, attemptID)
	}

	log := slogx.FromContext(ctx)

	token, err := attempt.HandleCallback(rawRedirectURL, attempt.Nonce)
	if err != nil {
		log.Warn("callback rejected", "attempt_id", attemptID, "error", err)
		return domain.Session{}, err
	}

	salt, err := s.Salts.FetchSalt(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}

	proof, err := s.Prover.RequestProof(ctx, token, salt,
		attempt.KeyPair.PublicKey, attempt.KeyPair.MaxEpoch, attempt.Provider.KeyClaimName)
	if err != nil {
		return domain.Session{}, err
	}

	addr, err := address.Derive(token, salt, attempt.Provider.KeyClaimName)
	if err != nil {
		return domain.Session{}, err
	}

	// Burn the nonce before writing the session. If the write below fails
	// the nonce is lost, which errs on the safe side: a nonce can complete
	// at most one authentication.
	if err := s.Store.Nonces().MarkUsed(ctx, attempt.Nonce, attempt.KeyPair.MaxEpoch); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Session{}, fmt.Errorf("%w: %q", ErrNonceReused, attempt.Nonce)
		}
		return domain.Session{}, err
	}

	sess := domain.Session{
		ID:        attempt.ID,
		Provider:  attempt.Provider.ID,
		Network:   attempt.Network,
		KeyPair:   attempt.KeyPair,
		Token:     token,
		Salt:      salt,
		Proof:     proof,
		Address:   addr,
		MaxEpoch:  attempt.KeyPair.MaxEpoch,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Store.Sessions().Create(ctx, sess); err != nil {
		return domain.Session{}, err
	}

	log.Info("login completed",
		"session_id", sess.ID,
		"provider", sess.Provider,
		"address", sess.Address,
		"max_epoch", sess.MaxEpoch,
	)
	return sess, nil
}

// CancelLogin discards an in-flight attempt and its key material.
func (s *LoginService) CancelLogin(ctx context.Context, attemptID idx.ID) error {
	s.mu.Lock()
	_, ok := s.inflight[attemptID]
	delete(s.inflight, attemptID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttempt, attemptID)
	}

	slogx.FromContext(ctx).Info("login cancelled", "attempt_id", attemptID)
	return nil
}

// InflightCount reports how many attempts are waiting on a callback.
func (s *LoginService) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
