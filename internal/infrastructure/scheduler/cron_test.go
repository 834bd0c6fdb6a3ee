package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(5*time.Millisecond, nil)
	var runs atomic.Int32
	if err := s.Start(context.Background(), func(time.Time) { runs.Add(1) }); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if err := s.Start(context.Background(), func(time.Time) { t.Error("second Start must not schedule") }); err != nil {
		t.Fatalf("second Start returned %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("job ran %d times, want at least 3", runs.Load())
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned %v", err)
	}
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job kept running after Stop")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on a stopped scheduler returned %v", err)
	}
}

func TestIntervalSchedulerDefaults(t *testing.T) {
	t.Parallel()

	if got := NewIntervalScheduler(0, nil).Interval(); got != 24*time.Hour {
		t.Fatalf("default interval = %s", got)
	}
	if err := NewIntervalScheduler(time.Hour, nil).Start(context.Background(), nil); err != nil {
		t.Fatalf("nil job should be ignored, got %v", err)
	}
}

func TestIntervalSchedulerStopWaitsForJob(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	if err := s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err == nil {
		t.Fatalf("Stop should report the context deadline while the job is running")
	}
	close(release)
}
