package runs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quantgate-hq/ganymede/pkg/runs/idemstore"
)

// Sweeper deletes expired idempotency records on a cron schedule so the
// backend does not grow without bound. Expired records are unreachable
// through Get either way; the sweep only reclaims space.
type Sweeper struct {
	backend  idemstore.Backend
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over an idempotency backend. An empty
// schedule disables it.
//
// Common cron expressions:
//   - "0 * * * *"   - Hourly
//   - "0 3 * * *"   - Daily at 3 AM
func NewSweeper(backend idemstore.Backend, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		backend:  backend,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "runs.sweeper"),
	}
}

// Start begins scheduled sweeping. If no schedule is configured the
// sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("idempotency sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// sweep executes one expiry cycle.
func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.backend.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("idempotency sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("idempotency sweep completed", "removed_count", removed)
	} else {
		s.logger.Debug("idempotency sweep completed, no records removed")
	}
}

// Stop stops the sweeper and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("idempotency sweeper stopped")
	}
}
