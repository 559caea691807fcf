// Package epoch abstracts the network's notion of time. Ephemeral keys and
// sessions are bounded by epoch numbers, never by wall-clock instants.
package epoch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Source reports the current epoch on the target network.
type Source interface {
	Current(ctx context.Context) (uint64, error)
}

var ErrBeforeGenesis = errors.New("epoch: current time precedes genesis")

// Interval maps wall clock onto fixed-length epochs counted from a genesis
// instant. This mirrors how the network schedules epochs; a deployment
// configures genesis and length to match its target chain.
type Interval struct {
	Genesis time.Time
	Length  time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (i Interval) Current(ctx context.Context) (uint64, error) {
	if i.Length <= 0 {
		return 0, errors.New("epoch: interval length must be positive")
	}

	now := time.Now()
	if i.Now != nil {
		now = i.Now()
	}

	if now.Before(i.Genesis) {
		return 0, ErrBeforeGenesis
	}

	return uint64(now.Sub(i.Genesis) / i.Length), nil
}

// Manual is a settable source for tests.
type Manual struct {
	mu    sync.Mutex
	epoch uint64
}

// NewManual returns a Manual source starting at the given epoch.
func NewManual(epoch uint64) *Manual {
	return &Manual{epoch: epoch}
}

func (m *Manual) Current(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch, nil
}

// Set moves the source to the given epoch.
func (m *Manual) Set(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch = epoch
}
