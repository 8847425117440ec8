package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/store"
)

// HousekeepingService periodically reaps expired database records: stale
// authentication states, dead web sessions, sensitive debug audit rows and
// consumed launch session hashes.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// SensitiveAuditTTL bounds how long debug-mode audit rows with raw
	// protocol material are retained.
	SensitiveAuditTTL time.Duration
	// SessionHashRetention bounds how long consumed (EXPIRED) launch
	// hashes are kept for diagnosis before deletion.
	SessionHashRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. Zero or negative durations fall back to defaults.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:                st,
		Logger:               logger,
		Interval:             interval,
		SensitiveAuditTTL:    24 * time.Hour,
		SessionHashRetention: 7 * 24 * time.Hour,
		stopCh:               make(chan struct{}),
		doneCh:               make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of expired records.
// Each deletion is independent - failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Info("starting housekeeping cleanup")

	var successful int

	if err := s.Store.AuthenticationStates().DeleteExpiredStates(ctx); err != nil {
		s.Logger.Error("failed to delete expired authentication states", "error", err)
	} else {
		successful++
	}

	if err := s.Store.WebSessions().DeleteExpiredWebSessions(ctx); err != nil {
		s.Logger.Error("failed to delete expired web sessions", "error", err)
	} else {
		successful++
	}

	if err := s.Store.AuditEvents().DeleteSensitiveAuditEventsBefore(ctx, time.Now().Add(-s.SensitiveAuditTTL)); err != nil {
		s.Logger.Error("failed to delete stale sensitive audit rows", "error", err)
	} else {
		successful++
	}

	if err := s.Store.SessionHashes().DeleteExpiredSessionHashesBefore(ctx, time.Now().Add(-s.SessionHashRetention)); err != nil {
		s.Logger.Error("failed to delete consumed launch session hashes", "error", err)
	} else {
		successful++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", successful)
}
