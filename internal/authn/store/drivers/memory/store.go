// Package memory is the default in-process store driver. A single mutex
// around plain maps is enough: sessions are immutable after Create and the
// hot path is Get.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/idx"
)

type Store struct {
	mu       sync.Mutex
	sessions map[idx.ID]domain.Session
	nonces   map[string]uint64 // nonce -> max epoch
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[idx.ID]domain.Session),
		nonces:   make(map[string]uint64),
	}
}

func (s *Store) Sessions() store.Sessions { return (*sessionsRepo)(s) }
func (s *Store) Nonces() store.Nonces     { return (*noncesRepo)(s) }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }

type sessionsRepo Store

func (r *sessionsRepo) Create(ctx context.Context, sess domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return store.ErrAlreadyExists
	}
	r.sessions[sess.ID] = sess
	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, id idx.ID, currentEpoch uint64) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	if sess.Expired(currentEpoch) {
		return domain.Session{}, store.ErrExpired
	}
	return sess, nil
}

func (r *sessionsRepo) Revoke(ctx context.Context, id idx.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *sessionsRepo) ListActive(ctx context.Context, currentEpoch uint64) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if !sess.Expired(currentEpoch) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, currentEpoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sess := range r.sessions {
		if sess.Expired(currentEpoch) {
			delete(r.sessions, id)
		}
	}
	return nil
}

type noncesRepo Store

func (r *noncesRepo) MarkUsed(ctx context.Context, nonce string, maxEpoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, spent := r.nonces[nonce]; spent {
		return store.ErrAlreadyExists
	}
	r.nonces[nonce] = maxEpoch
	return nil
}

func (r *noncesRepo) DeleteExpired(ctx context.Context, currentEpoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for nonce, maxEpoch := range r.nonces {
		if currentEpoch > maxEpoch {
			delete(r.nonces, nonce)
		}
	}
	return nil
}
