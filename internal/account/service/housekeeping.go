package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/pkg/clockx"
)

// HousekeepingService periodically deletes expired refresh-token rows.
// Logical revocation keeps the system correct without it; this only bounds
// table growth.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Clock    clockx.Clock
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, clock clockx.Clock, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if clock == nil {
		clock = clockx.System()
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Clock:    clock,
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

	// Sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, s.Clock.Now()); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
		return
	}
	s.Logger.Debug("deleted expired refresh tokens")
}
