// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package scheduler runs a per-user job at the next due time, ordered by a
// min-heap so the process sleeps until the earliest deadline instead of
// polling every user.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxSleep bounds a single wait so wall-clock jumps are noticed.
const maxSleep = time.Hour

// Func is the job run for a user whose entry became due.
type Func func(ctx context.Context, userID int64) error

type entry struct {
	userID int64
	at     time.Time
	gen    uint64
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].userID < h[j].userID
	}
	return h[i].at.Before(h[j].at)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler holds due times per user. Arm replaces every pending time of a
// user, so stale entries left in the heap are skipped when they surface.
type Scheduler struct {
	mu   sync.Mutex
	h    entryHeap
	gen  map[int64]uint64
	wake chan struct{}
	run  Func
	now  func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New returns a Scheduler that calls run for due users.
func New(run Func, opts ...Option) *Scheduler {
	s := &Scheduler{
		gen:  make(map[int64]uint64),
		wake: make(chan struct{}, 1),
		run:  run,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm replaces the due times of userID. Arm with no times disarms the user.
func (s *Scheduler) Arm(userID int64, times ...time.Time) {
	s.mu.Lock()
	s.gen[userID]++
	g := s.gen[userID]
	for _, at := range times {
		heap.Push(&s.h, entry{userID: userID, at: at, gen: g})
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the earliest live entry.
func (s *Scheduler) Next() (userID int64, at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStale()
	if len(s.h) == 0 {
		return 0, time.Time{}, false
	}
	return s.h[0].userID, s.h[0].at, true
}

// Len returns the number of live entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.h {
		if e.gen == s.gen[e.userID] {
			n++
		}
	}
	return n
}

func (s *Scheduler) dropStale() {
	for len(s.h) > 0 && s.h[0].gen != s.gen[s.h[0].userID] {
		heap.Pop(&s.h)
	}
}

// popDue removes every entry due at now and returns the distinct users in
// due order.
func (s *Scheduler) popDue(now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []int64
	seen := make(map[int64]bool)
	for {
		s.dropStale()
		if len(s.h) == 0 || s.h[0].at.After(now) {
			return users
		}
		head := s.h[0]
		heap.Pop(&s.h)
		if !seen[head.userID] {
			seen[head.userID] = true
			users = append(users, head.userID)
		}
	}
}

// RunDue runs the job for every user due now and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context) int {
	users := s.popDue(s.now())
	for _, id := range users {
		if err := s.run(ctx, id); err != nil {
			slog.Error("scheduled scan failed", "user_id", id, "error", err)
		}
	}
	return len(users)
}

// Wait returns how long Run sleeps before the earliest entry is due. An
// entry that fell due since the last batch yields zero.
func (s *Scheduler) Wait() time.Duration {
	_, at, ok := s.Next()
	if !ok {
		return maxSleep
	}
	return min(max(at.Sub(s.now()), 0), maxSleep)
}

// Run processes entries as they become due until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "entries", s.Len())
	for {
		if s.RunDue(ctx) > 0 {
			continue
		}

		timer := time.NewTimer(s.Wait())
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
