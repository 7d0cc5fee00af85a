package roulette

import (
	"sync"
	"testing"
	"time"
)

func TestSchedulerFiresAndCancels(test *testing.T) {
	test.Parallel()
	var (
		mutex sync.Mutex
		fired []string
	)
	done := make(chan struct{}, 1)
	scheduler := NewScheduler(func(roundID string) {
		mutex.Lock()
		fired = append(fired, roundID)
		mutex.Unlock()
		done <- struct{}{}
	})
	defer scheduler.Stop()

	scheduler.Schedule("cancelled", 20*time.Millisecond)
	scheduler.Schedule("kept", 30*time.Millisecond)
	if scheduler.Pending() != 2 {
		test.Fatalf("expected 2 pending timers, got %d", scheduler.Pending())
	}
	scheduler.Cancel("cancelled")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		test.Fatalf("timer did not fire")
	}
	time.Sleep(50 * time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	if len(fired) != 1 || fired[0] != "kept" {
		test.Fatalf("unexpected fired rounds: %v", fired)
	}
	if scheduler.Pending() != 0 {
		test.Fatalf("expected no pending timers, got %d", scheduler.Pending())
	}
}

func TestSchedulerStopIgnoresLaterSchedules(test *testing.T) {
	test.Parallel()
	scheduler := NewScheduler(func(string) { test.Errorf("stopped scheduler fired") })
	scheduler.Schedule("a", time.Hour)
	scheduler.Stop()
	scheduler.Schedule("b", time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if scheduler.Pending() != 0 {
		test.Fatalf("expected no pending timers after stop, got %d", scheduler.Pending())
	}
}
