package roulette

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
)

// Scheduler keeps one cancellable timer per open round.
type Scheduler struct {
	timers *xsync.MapOf[string, *time.Timer]
	fire   func(roundID string)
	mutex  sync.Mutex
	closed bool
}

// NewScheduler returns a Scheduler invoking fire when a round's timer expires.
func NewScheduler(fire func(roundID string)) *Scheduler {
	return &Scheduler{timers: xsync.NewMapOf[*time.Timer](), fire: fire}
}

// Schedule arms (or re-arms) the timer for roundID.
func (scheduler *Scheduler) Schedule(roundID string, delay time.Duration) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	if scheduler.closed {
		return
	}
	if existing, ok := scheduler.timers.LoadAndDelete(roundID); ok {
		existing.Stop()
	}
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		scheduler.timers.Delete(roundID)
		scheduler.fire(roundID)
	})
	scheduler.timers.Store(roundID, timer)
}

// Cancel stops the timer for roundID, if any.
func (scheduler *Scheduler) Cancel(roundID string) {
	if timer, ok := scheduler.timers.LoadAndDelete(roundID); ok {
		timer.Stop()
	}
}

// Pending reports how many timers are armed.
func (scheduler *Scheduler) Pending() int {
	return scheduler.timers.Size()
}

// Stop disarms every timer; later Schedule calls are ignored.
func (scheduler *Scheduler) Stop() {
	scheduler.mutex.Lock()
	scheduler.closed = true
	scheduler.mutex.Unlock()
	scheduler.timers.Range(func(roundID string, timer *time.Timer) bool {
		timer.Stop()
		scheduler.timers.Delete(roundID)
		return true
	})
}
