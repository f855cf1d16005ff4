package eventbus

import (
	"context"
	"sync"
	"time"
)

// Stats aggregates habit and reminder events for the health endpoint.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

type StatsSnapshot struct {
	HabitsCreated   uint64    `json:"habits_created"`
	HabitsUpdated   uint64    `json:"habits_updated"`
	HabitsDeleted   uint64    `json:"habits_deleted"`
	RemindersSent   uint64    `json:"reminders_sent"`
	RemindersFailed uint64    `json:"reminders_failed"`
	LastReminderAt  time.Time `json:"last_reminder_at,omitempty"`
	LastFailure     string    `json:"last_failure,omitempty"`
}

func NewStats() *Stats { return &Stats{} }

// Run consumes events until ctx is done or the channel closes.
func (s *Stats) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Observe(e)
		}
	}
}

func (s *Stats) Observe(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Type {
	case HabitCreated:
		s.snap.HabitsCreated++
	case HabitUpdated:
		s.snap.HabitsUpdated++
	case HabitDeleted:
		s.snap.HabitsDeleted++
	case ReminderSent:
		s.snap.RemindersSent++
		s.snap.LastReminderAt = e.Time
	case ReminderFailed:
		s.snap.RemindersFailed++
		s.snap.LastReminderAt = e.Time
		if err, ok := e.Data.(error); ok {
			s.snap.LastFailure = err.Error()
		}
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
