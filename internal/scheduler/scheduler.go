package scheduler

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Key identifies a member-scoped task.
type Key struct {
	GuildID string
	UserID  string
}

type task struct {
	timer Timer
	due   time.Time
}

// Scheduler runs at most one pending task per key. Scheduling a key again
// replaces the earlier task, and a cancelled task never runs, even when its
// timer had already fired and was waiting on the lock.
type Scheduler struct {
	mu    sync.Mutex
	clock Clock
	tasks map[Key]*task
}

func New() *Scheduler {
	return &Scheduler{
		clock: realClock{},
		tasks: make(map[Key]*task),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// Schedule runs fn after d unless the key is cancelled or rescheduled first.
func (s *Scheduler) Schedule(key Key, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous := s.tasks[key]; previous != nil {
		previous.timer.Stop()
	}
	t := &task{due: s.clock.Now().Add(d)}
	t.timer = s.clock.AfterFunc(d, func() {
		if !s.claim(key, t) {
			return
		}
		fn()
	})
	s.tasks[key] = t
}

// Cancel drops the pending task for key and reports whether one existed.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[key]
	if t == nil {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending returns the due time of the task scheduled for key.
func (s *Scheduler) Pending(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[key]
	if t == nil {
		return time.Time{}, false
	}
	return t.due, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// After runs fn once after d without tracking it.
func (s *Scheduler) After(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	clock := s.clock
	s.mu.Unlock()
	return clock.AfterFunc(d, fn)
}

func (s *Scheduler) claim(key Key, t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[key] != t {
		return false
	}
	delete(s.tasks, key)
	return true
}
