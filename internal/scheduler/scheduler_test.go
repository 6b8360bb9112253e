package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
)

type recordedAlert struct {
	title       string
	leadMinutes int
}

type fakeSink struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (f *fakeSink) Notify(title string, leadMinutes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, recordedAlert{title: title, leadMinutes: leadMinutes})
}

func (f *fakeSink) snapshot() []recordedAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedAlert, len(f.alerts))
	copy(out, f.alerts)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestRecomputeArmsOnlyFutureFireTimes(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)
	defer s.CancelAll()

	now := time.Now()
	countdowns := []domain.Countdown{
		{ID: 1, Title: "Future", Date: now.Add(2 * time.Hour)},
		{ID: 2, Title: "Past", Date: now.Add(-time.Hour)},
	}
	leads := map[int64][]int{
		1: {0, 60}, // both fire in the future
		2: {0},     // already past, recovery's job
	}

	s.Recompute(countdowns, leads, now)
	assert.Equal(t, 2, s.Pending())
	assert.Empty(t, sink.snapshot(), "past fire times must not fire from recompute")
}

func TestRecomputeIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)
	defer s.CancelAll()

	now := time.Now()
	countdowns := []domain.Countdown{{ID: 1, Title: "Birthday", Date: now.Add(time.Hour)}}
	leads := map[int64][]int{1: {5, 30}}

	s.Recompute(countdowns, leads, now)
	first := s.Pending()
	s.Recompute(countdowns, leads, now)
	assert.Equal(t, first, s.Pending())
	assert.Equal(t, 2, s.Pending())
}

func TestTimerFiresIntoSink(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)
	defer s.CancelAll()

	// Lead time of 60 minutes with the event just over 60 minutes out, so the
	// timer pops almost immediately.
	now := time.Now()
	countdowns := []domain.Countdown{{ID: 1, Title: "Birthday", Date: now.Add(60*time.Minute + 30*time.Millisecond)}}
	s.Recompute(countdowns, map[int64][]int{1: {60}}, now)
	require.Equal(t, 1, s.Pending())

	waitFor(t, time.Second, func() bool { return len(sink.snapshot()) == 1 })
	alerts := sink.snapshot()
	assert.Equal(t, "Birthday", alerts[0].title)
	assert.Equal(t, 60, alerts[0].leadMinutes)
	assert.Equal(t, 0, s.Pending())
}

func TestRecomputeCancelsStaleTimers(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)
	defer s.CancelAll()

	now := time.Now()
	countdowns := []domain.Countdown{{ID: 1, Title: "Soon", Date: now.Add(40 * time.Millisecond)}}
	s.Recompute(countdowns, map[int64][]int{1: {0}}, now)
	require.Equal(t, 1, s.Pending())

	// Countdown deleted before the timer pops: recompute with the new (empty)
	// state must cancel the pending timer.
	s.Recompute(nil, nil, time.Now())
	assert.Equal(t, 0, s.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink.snapshot(), "cancelled timer must not fire")
}

func TestCoincidingFireTimesBothFire(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)
	defer s.CancelAll()

	// Two lead times on two countdowns landing on the same instant each fire
	// independently.
	now := time.Now()
	countdowns := []domain.Countdown{
		{ID: 1, Title: "One", Date: now.Add(60*time.Minute + 20*time.Millisecond)},
		{ID: 2, Title: "Two", Date: now.Add(20 * time.Millisecond)},
	}
	s.Recompute(countdowns, map[int64][]int{1: {60}, 2: {0}}, now)
	require.Equal(t, 2, s.Pending())

	waitFor(t, time.Second, func() bool { return len(sink.snapshot()) == 2 })
}

func TestCancelAll(t *testing.T) {
	sink := &fakeSink{}
	s := New(sink)

	now := time.Now()
	countdowns := []domain.Countdown{{ID: 1, Title: "Birthday", Date: now.Add(time.Hour)}}
	s.Recompute(countdowns, map[int64][]int{1: {0}}, now)
	require.Equal(t, 1, s.Pending())

	s.CancelAll()
	assert.Equal(t, 0, s.Pending())
}
