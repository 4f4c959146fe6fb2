package core

// scheduler.go runs the background maintenance of open sessions:
//  1. Close sessions nobody touched within the idle timeout
//  2. Silently reload every open session so the data stays current
//
// The scheduler is long-running and stops when its context is cancelled.
// Failures are logged and never stop the loop.

import (
	"context"
	"log/slog"
	"time"
)

// SchedulerConfig holds the scheduler intervals.
type SchedulerConfig struct {
	SweepInterval   time.Duration // How often to close idle sessions (default: 1m)
	RefreshInterval time.Duration // How often to reload sessions, 0 to disable
}

// StartScheduler blocks running the sweep and refresh jobs until ctx is
// cancelled. The sweep runs once immediately on start.
func (s *Service) StartScheduler(ctx context.Context, cfg SchedulerConfig) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	slog.Info("session scheduler started",
		"sweep_interval", cfg.SweepInterval,
		"refresh_interval", cfg.RefreshInterval,
	)

	s.runSweep()

	sweep := time.NewTicker(cfg.SweepInterval)
	defer sweep.Stop()

	// a nil channel never fires, which disables the refresh job
	var refresh <-chan time.Time
	if cfg.RefreshInterval > 0 {
		t := time.NewTicker(cfg.RefreshInterval)
		defer t.Stop()
		refresh = t.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("session scheduler stopped")
			return
		case <-sweep.C:
			s.runSweep()
		case <-refresh:
			s.runRefresh(ctx)
		}
	}
}

func (s *Service) runSweep() {
	if closed := s.SweepIdle(); closed > 0 {
		slog.Info("closed idle sessions", "sessions_closed", closed, "sessions_open", s.SessionCount())
	}
}

func (s *Service) runRefresh(ctx context.Context) {
	start := time.Now()
	open := s.SessionCount()
	if open == 0 {
		return
	}
	refreshed := s.RefreshAll(ctx)
	slog.Info("sessions refreshed",
		"sessions_refreshed", refreshed,
		"sessions_open", open,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
