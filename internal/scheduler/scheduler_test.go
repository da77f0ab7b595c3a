// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/scheduler"
	"codeberg.org/willtank/willtank/internal/testutil"
)

type recorder struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recorder) run(_ context.Context, userID int64) error {
	r.mu.Lock()
	r.calls = append(r.calls, userID)
	r.mu.Unlock()
	return nil
}

func (r *recorder) got() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

func TestRunDue_EarliestFirst(t *testing.T) {
	clock := testutil.NewClock()
	rec := &recorder{}
	s := scheduler.New(rec.run, scheduler.WithClock(clock.Now))
	base := clock.Now()

	s.Arm(3, base.Add(3*time.Hour))
	s.Arm(1, base.Add(1*time.Hour))
	s.Arm(2, base.Add(2*time.Hour))

	id, at, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, base.Add(time.Hour), at)

	assert.Zero(t, s.RunDue(context.Background()))

	clock.Advance(150 * time.Minute)
	assert.Equal(t, 2, s.RunDue(context.Background()))
	assert.Equal(t, []int64{1, 2}, rec.got())
	assert.Equal(t, 1, s.Len())
}

func TestArm_ReplacesPendingTimes(t *testing.T) {
	clock := testutil.NewClock()
	rec := &recorder{}
	s := scheduler.New(rec.run, scheduler.WithClock(clock.Now))
	base := clock.Now()

	s.Arm(1, base.Add(time.Hour), base.Add(2*time.Hour))
	s.Arm(1, base.Add(10*time.Hour))

	assert.Equal(t, 1, s.Len())
	clock.Advance(3 * time.Hour)
	assert.Zero(t, s.RunDue(context.Background()))

	clock.Advance(7 * time.Hour)
	assert.Equal(t, 1, s.RunDue(context.Background()))
	assert.Equal(t, []int64{1}, rec.got())
}

func TestArm_NoTimesDisarms(t *testing.T) {
	clock := testutil.NewClock()
	s := scheduler.New((&recorder{}).run, scheduler.WithClock(clock.Now))

	s.Arm(1, clock.Now().Add(time.Hour))
	s.Arm(1)

	_, _, ok := s.Next()
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestRunDue_OncePerUserPerBatch(t *testing.T) {
	clock := testutil.NewClock()
	rec := &recorder{}
	s := scheduler.New(rec.run, scheduler.WithClock(clock.Now))

	s.Arm(1, clock.Now().Add(time.Minute), clock.Now().Add(2*time.Minute))
	clock.Advance(time.Hour)

	assert.Equal(t, 1, s.RunDue(context.Background()))
	assert.Equal(t, []int64{1}, rec.got())
}

func TestRunDue_ErrorsDoNotStopBatch(t *testing.T) {
	clock := testutil.NewClock()
	var ran []int64
	s := scheduler.New(func(_ context.Context, id int64) error {
		ran = append(ran, id)
		return errors.New("scan failed")
	}, scheduler.WithClock(clock.Now))

	s.Arm(1, clock.Now())
	s.Arm(2, clock.Now())

	assert.Equal(t, 2, s.RunDue(context.Background()))
	assert.Equal(t, []int64{1, 2}, ran)
}

func TestRun_FiresAndStops(t *testing.T) {
	rec := &recorder{}
	s := scheduler.New(rec.run)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Arm(7, time.Now().Add(20*time.Millisecond))

	assert.Eventually(t, func() bool { return len(rec.got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWait(t *testing.T) {
	clock := testutil.NewClock()
	s := scheduler.New((&recorder{}).run, scheduler.WithClock(clock.Now))

	assert.Equal(t, time.Hour, s.Wait(), "nothing armed")

	s.Arm(1, clock.Now().Add(10*time.Minute))
	assert.Equal(t, 10*time.Minute, s.Wait())

	s.Arm(1, clock.Now().Add(48*time.Hour))
	assert.Equal(t, time.Hour, s.Wait(), "capped")

	// due between the last batch and the next wait
	s.Arm(1, clock.Now().Add(time.Millisecond))
	clock.Advance(2 * time.Millisecond)
	assert.Zero(t, s.Wait())
}
