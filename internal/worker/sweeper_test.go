package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{}, nil)

	if s == nil {
		t.Fatal("expected sweeper, got nil")
	}
	if s.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m (default)", s.interval)
	}
	if s.logger == nil {
		t.Error("logger should fall back to default")
	}
	if s.stop == nil {
		t.Error("stop channel should be initialized")
	}
}

func TestNewCustomInterval(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{Interval: time.Minute}, slog.Default())

	if s.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", s.interval)
	}
}

func TestSweeperStartStop(t *testing.T) {
	// Long interval so the loop never ticks during the test.
	s := New(nil, nil, nil, nil, Config{Interval: time.Hour}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Stop() timed out")
	}
}

func TestSweeperStopViaContext(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{Interval: time.Hour}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Stop() timed out after context cancellation")
	}
}
