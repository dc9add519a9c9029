package director

import (
	"sync"
	"time"
)

// Scheduler runs callbacks after a delay. Scheduled tasks are independent
// and non-blocking; multiple tasks may be in flight at once. CancelAll
// deterministically prevents pending callbacks from firing, which is how
// stop() keeps teardown from racing against timer callbacks.
type Scheduler interface {
	// After schedules fn to run once after d. The returned cancel func
	// stops the task if it has not fired yet.
	After(d time.Duration, fn func()) (cancel func())

	// CancelAll stops every pending task.
	CancelAll()
}

// TimerScheduler implements Scheduler on time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	nextID int64
	timers map[int64]*time.Timer
}

// NewTimerScheduler creates a timer-backed scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[int64]*time.Timer)}
}

// After schedules fn after d.
func (s *TimerScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		_, pending := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if pending {
			fn()
		}
	})
	s.timers[id] = timer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()
	}
}

// CancelAll stops all pending tasks.
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}
