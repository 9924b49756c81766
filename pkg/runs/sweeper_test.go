package runs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"quantgate-hq/ganymede/pkg/runs/idemstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_EmptyScheduleIsDisabled(t *testing.T) {
	s := NewSweeper(idemstore.NewMemoryBackend(), "", discardLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("expected a disabled sweeper to start cleanly, got: %v", err)
	}
	s.Stop()
}

func TestSweeper_RejectsInvalidSchedule(t *testing.T) {
	s := NewSweeper(idemstore.NewMemoryBackend(), "every hour or so", discardLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected an invalid cron expression to be rejected")
	}
}

func TestSweeper_StartAndStop(t *testing.T) {
	s := NewSweeper(idemstore.NewMemoryBackend(), "0 * * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Stop()
	// Stop is idempotent.
	s.Stop()
}

func TestSweeper_SweepRemovesExpiredRecords(t *testing.T) {
	backend := idemstore.NewMemoryBackend()
	ctx := context.Background()

	if err := backend.Put(ctx, &idemstore.Record{
		Scope:     "tenant-1/user-1",
		Key:       "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	s := NewSweeper(backend, "0 * * * *", discardLogger())
	s.sweep(ctx)

	removed, err := backend.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected the sweep to have already removed the record, %d left", removed)
	}
}
