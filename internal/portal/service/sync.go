package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const DefaultSyncInterval = 5 * time.Minute

// SyncService periodically reconciles the controller with the store and
// purges retired verification challenges.
type SyncService struct {
	Guests       *GuestService
	Verification *VerificationService
	Logger       *slog.Logger
	Interval     time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSyncService creates a sync worker. A non-positive interval falls back
// to DefaultSyncInterval.
func NewSyncService(guests *GuestService, verification *VerificationService, logger *slog.Logger, interval time.Duration) *SyncService {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if logger == nil {
		logger = slogx.Discard()
	}

	return &SyncService{
		Guests:       guests,
		Verification: verification,
		Logger:       logger,
		Interval:     interval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *SyncService) Start() {
	go s.run()
	s.Logger.Info("sync service started", slog.Duration("interval", s.Interval))
}

// Stop blocks until an in-progress sweep has finished.
func (s *SyncService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("sync service stopped")
}

func (s *SyncService) run() {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(slogx.WithContext(context.Background(), s.Logger))
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one reconcile and purge pass. The two steps are independent;
// a failure in one is logged and the other still runs.
func (s *SyncService) Sweep(ctx context.Context) {
	if s.Guests != nil {
		report, err := s.Guests.Reconcile(ctx)
		if err != nil {
			s.Logger.Warn("controller reconcile failed", slog.Any("error", err))
		} else {
			s.Logger.Info("controller reconciled",
				slog.Int("stations", report.Stations),
				slog.Int("connected", report.Connected),
				slog.Int("disconnected", report.Disconnected),
				slog.Int("evicted", report.Evicted),
				slog.Int("reasserted", report.Reasserted),
			)
		}
	}

	if s.Verification != nil {
		n, err := s.Verification.PurgeExpired(ctx)
		if err != nil {
			s.Logger.Error("failed to purge retired challenges", slog.Any("error", err))
		} else {
			s.Logger.Debug("purged retired challenges", slog.Int64("deleted", n))
		}
	}
}
