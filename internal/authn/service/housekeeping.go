package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/store"
)

// HousekeepingService periodically sweeps expired sessions and spent nonces
// so the store does not grow without bound. Expiry is otherwise lazy; this
// worker is what actually destroys stale key material.
type HousekeepingService struct {
	Store    store.Store
	Epochs   epoch.Source
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. If interval is 0 or negative,
// defaults to 15 minutes.
func NewHousekeepingService(st store.Store, epochs epoch.Source, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Epochs:   epochs,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once on startup.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes sessions and nonces whose epoch bound has passed. Each
// deletion is independent; a failure in one does not stop the other.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	current, err := s.Epochs.Current(ctx)
	if err != nil {
		s.Logger.Error("housekeeping: reading current epoch", "error", err)
		return
	}

	if err := s.Store.Sessions().DeleteExpired(ctx, current); err != nil {
		s.Logger.Error("housekeeping: deleting expired sessions", "error", err)
	}

	if err := s.Store.Nonces().DeleteExpired(ctx, current); err != nil {
		s.Logger.Error("housekeeping: deleting expired nonces", "error", err)
	}

	s.Logger.Debug("housekeeping sweep completed", "epoch", current)
}
