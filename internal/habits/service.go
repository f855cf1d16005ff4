package habits

import (
	"context"
	"errors"
	"time"

	"habitbot/internal/eventbus"
	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// Scheduler owns the reminder job of a habit. reminder.Manager implements it.
type Scheduler interface {
	SetSchedule(ctx context.Context, h storage.Habit) error
	DeleteSchedule(ctx context.Context, habitID int64) error
}

// Service is the habit use-case layer. Every mutation runs in one
// transaction; reminder jobs follow after commit.
type Service struct {
	store *storage.Store
	sched Scheduler
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time
}

func NewService(store *storage.Store, sched Scheduler, bus eventbus.Bus, log logx.Logger) *Service {
	if bus == nil {
		bus = eventbus.Nop()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, sched: sched, bus: bus, log: log, now: time.Now}
}

// Create validates in, stores a habit owned by c and schedules its reminder.
// A scheduling failure is logged; the habit is still returned.
func (s *Service) Create(ctx context.Context, c Caller, in HabitInput) (storage.Habit, error) {
	var h storage.Habit
	err := s.store.WithTx(ctx, func(ctx context.Context, q *storage.Q) error {
		f, err := validate(ctx, q, defaultFields(0), in, true, nil)
		if err != nil {
			return err
		}
		owner := c.UserID
		h = f.applyTo(storage.Habit{OwnerID: &owner, TimeToPerform: s.now().UTC()})
		h.ID, err = q.CreateHabit(ctx, h)
		return translate(err)
	})
	if err != nil {
		return storage.Habit{}, err
	}

	log := s.log.With(logx.Int64("habit_id", h.ID), logx.Int64("owner_id", c.UserID))
	log.Info("habit created", logx.Int("periodicity", h.Periodicity), logx.Bool("pleasure", h.IsPleasure))
	if s.sched != nil {
		if err := s.sched.SetSchedule(ctx, h); err != nil {
			log.Error("schedule reminder failed", logx.Err(err))
		}
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.HabitCreated, HabitID: h.ID})
	return h, nil
}

// Update applies in to habit id. With partial, absent fields keep their
// stored values; otherwise absent optional fields reset to their defaults.
// The reminder job is replaced after commit.
func (s *Service) Update(ctx context.Context, c Caller, id int64, in HabitInput, partial bool) (storage.Habit, error) {
	var h storage.Habit
	err := s.store.WithTx(ctx, func(ctx context.Context, q *storage.Q) error {
		stored, err := q.GetHabit(ctx, id)
		if err != nil {
			return translate(err)
		}
		if !c.CanAccess(stored) {
			return ErrPermission
		}
		base := FieldsOf(stored)
		if !partial {
			base = defaultFields(id)
		}
		f, err := validate(ctx, q, base, in, !partial, &stored)
		if err != nil {
			return err
		}
		h = f.applyTo(stored)
		return translate(q.UpdateHabit(ctx, h))
	})
	if err != nil {
		return storage.Habit{}, err
	}

	log := s.log.With(logx.Int64("habit_id", h.ID), logx.Int64("caller_id", c.UserID))
	log.Info("habit updated", logx.Bool("partial", partial), logx.Int("periodicity", h.Periodicity))
	s.reschedule(ctx, h, log)
	s.bus.Publish(eventbus.Event{Type: eventbus.HabitUpdated, HabitID: h.ID})
	return h, nil
}

// reschedule replaces the reminder job of h. A concurrent update of the same
// habit can recreate the job between our delete and create; the job is then
// replaced once more so it reflects the latest committed row.
func (s *Service) reschedule(ctx context.Context, h storage.Habit, log logx.Logger) {
	if s.sched == nil {
		return
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.sched.DeleteSchedule(ctx, h.ID); err != nil {
			log.Error("unschedule reminder failed", logx.Err(err))
			return
		}
		err := s.sched.SetSchedule(ctx, h)
		if err == nil {
			return
		}
		if !errors.Is(err, storage.ErrJobExists) || attempt == 1 {
			log.Error("schedule reminder failed", logx.Err(err))
			return
		}
		log.Debug("reminder recreated concurrently; replacing it")
	}
}

// Delete removes habit id and its reminder job in one transaction.
// ErrProtected while other habits link to it.
func (s *Service) Delete(ctx context.Context, c Caller, id int64) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, q *storage.Q) error {
		stored, err := q.GetHabit(ctx, id)
		if err != nil {
			return translate(err)
		}
		if !c.CanAccess(stored) {
			return ErrPermission
		}
		n, err := q.CountHabitLinks(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrProtected
		}
		if s.sched != nil {
			if err := s.sched.DeleteSchedule(ctx, id); err != nil {
				return err
			}
		}
		return translate(q.DeleteHabit(ctx, id))
	})
	if err != nil {
		return err
	}
	s.log.Info("habit deleted", logx.Int64("habit_id", id), logx.Int64("caller_id", c.UserID))
	s.bus.Publish(eventbus.Event{Type: eventbus.HabitDeleted, HabitID: id})
	return nil
}

// Get returns habit id if c may see it.
func (s *Service) Get(ctx context.Context, c Caller, id int64) (storage.Habit, error) {
	h, err := s.store.Q(ctx).GetHabit(ctx, id)
	if err != nil {
		return storage.Habit{}, translate(err)
	}
	if !c.CanAccess(h) {
		return storage.Habit{}, ErrPermission
	}
	return h, nil
}

// List returns a page of the caller's own habits and the total count.
func (s *Service) List(ctx context.Context, c Caller, p storage.Page) ([]storage.Habit, int, error) {
	return s.store.Q(ctx).ListHabitsByOwner(ctx, c.UserID, p)
}

// ListPublic returns a page of public habits and the total count.
func (s *Service) ListPublic(ctx context.Context, p storage.Page) ([]storage.Habit, int, error) {
	return s.store.Q(ctx).ListPublicHabits(ctx, p)
}
