package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
)

// Sink receives an alert when an armed timer expires. The notifier implements
// this; it composes the user-facing messages from the title and lead-time.
type Sink interface {
	Notify(title string, leadMinutes int)
}

type timerState int

const (
	statePending timerState = iota
	stateFired
	stateCancelled
)

type armedTimer struct {
	countdownID int64
	leadMinutes int
	fireAt      time.Time
	state       timerState
	timer       *time.Timer
}

// Scheduler owns one one-shot timer per future (countdown, lead-time) pair.
// Recompute is the only way timers are armed or cancelled: every call throws
// away the previous timer set and arms a fresh one, so a data change can never
// leave stale or duplicate timers behind.
type Scheduler struct {
	mu     sync.Mutex
	sink   Sink
	timers []*armedTimer
}

func New(sink Sink) *Scheduler {
	return &Scheduler{sink: sink}
}

// Recompute cancels every still-pending timer and arms one timer per
// (countdown, lead-time) pair whose fire time lies strictly after now.
// Pairs already in the past are left to startup recovery.
func (s *Scheduler) Recompute(countdowns []domain.Countdown, leadTimes map[int64][]int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, at := range s.timers {
		if at.state == statePending {
			at.state = stateCancelled
			at.timer.Stop()
		}
	}
	s.timers = s.timers[:0]

	for _, cd := range countdowns {
		for _, mins := range leadTimes[cd.ID] {
			fireAt := cd.FireTime(mins)
			if !fireAt.After(now) {
				log.Debug().
					Int64("countdown_id", cd.ID).
					Int("lead_minutes", mins).
					Time("fire_at", fireAt).
					Msg("fire time already past, not arming")
				continue
			}
			at := &armedTimer{
				countdownID: cd.ID,
				leadMinutes: mins,
				fireAt:      fireAt,
			}
			at.timer = time.AfterFunc(fireAt.Sub(now), func() { s.fire(at, cd) })
			s.timers = append(s.timers, at)
		}
	}

	log.Info().Int("armed", len(s.timers)).Msg("timers recomputed")
}

func (s *Scheduler) fire(at *armedTimer, cd domain.Countdown) {
	s.mu.Lock()
	if at.state != statePending {
		// Lost the race against a concurrent Recompute.
		s.mu.Unlock()
		return
	}
	at.state = stateFired
	s.mu.Unlock()

	log.Info().
		Int64("countdown_id", at.countdownID).
		Str("title", cd.Title).
		Int("lead_minutes", at.leadMinutes).
		Msg("countdown alert fired")
	s.sink.Notify(cd.Title, at.leadMinutes)
}

// Pending reports how many armed timers have neither fired nor been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, at := range s.timers {
		if at.state == statePending {
			n++
		}
	}
	return n
}

// CancelAll stops every pending timer; used on shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, at := range s.timers {
		if at.state == statePending {
			at.state = stateCancelled
			at.timer.Stop()
		}
	}
	s.timers = s.timers[:0]
}
