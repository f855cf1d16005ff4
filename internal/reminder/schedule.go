package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"habitbot/internal/storage"
	"habitbot/internal/task/scheduler"
	logx "habitbot/pkg/logx"
)

// TaskSendTelegram is the task name recorded on every reminder job.
const TaskSendTelegram = "send_telegram_message"

// Trigger arms and disarms named interval triggers.
type Trigger interface {
	AddInterval(name string, every time.Duration, job scheduler.Job) error
	Remove(name string) bool
	Location() *time.Location
}

// Manager keeps the persistent job registry and the live triggers in step.
// Jobs are named by the habit id.
type Manager struct {
	store     *storage.Store
	trigger   Trigger
	disp      *Dispatcher
	log       logx.Logger
	dayLength time.Duration
	now       func() time.Time
}

type Option func(*Manager)

// WithDayLength overrides the length of one periodicity day.
func WithDayLength(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.dayLength = d
		}
	}
}

func NewManager(store *storage.Store, trigger Trigger, disp *Dispatcher, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		store:     store,
		trigger:   trigger,
		disp:      disp,
		log:       log,
		dayLength: 24 * time.Hour,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func JobName(habitID int64) string { return strconv.FormatInt(habitID, 10) }

// SetSchedule registers the reminder job for h with interval = periodicity
// days. It fails with storage.ErrJobExists if the habit already has one.
func (m *Manager) SetSchedule(ctx context.Context, h storage.Habit) error {
	q := m.store.Q(ctx)
	d, err := q.GetHabitDetail(ctx, h.ID)
	if err != nil {
		return fmt.Errorf("load habit %d: %w", h.ID, err)
	}
	p := Payload{
		ChatID: d.TelegramChatID,
		Action: d.ActionName,
		Time:   d.TimeToPerform.In(m.trigger.Location()).Format("15:04"),
		Place:  d.PlaceName,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	name := JobName(h.ID)
	job := storage.Job{
		Name:         name,
		Task:         TaskSendTelegram,
		IntervalDays: d.Periodicity,
		Payload:      string(raw),
		Enabled:      true,
		CreatedAt:    m.now().UTC(),
	}
	if err := q.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job %s: %w", name, err)
	}

	var armErr error
	// inside a transaction the trigger is armed at commit, after we return
	storage.AfterCommit(ctx, func() {
		if armErr = m.arm(job); armErr != nil {
			m.log.Error("arm reminder failed", logx.String("job", name), logx.Err(armErr))
		}
	})
	if armErr != nil {
		return armErr
	}
	m.log.Info("reminder scheduled", logx.String("job", name), logx.Int("every_days", job.IntervalDays), logx.String("time", p.Time))
	return nil
}

// DeleteSchedule removes the job for habitID. Absent jobs are a no-op.
func (m *Manager) DeleteSchedule(ctx context.Context, habitID int64) error {
	name := JobName(habitID)
	removed, err := m.store.Q(ctx).DeleteJob(ctx, name)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", name, err)
	}
	storage.AfterCommit(ctx, func() { m.trigger.Remove(name) })
	if removed {
		m.log.Info("reminder unscheduled", logx.String("job", name))
	}
	return nil
}

// Exists reports whether habitID has a registered job.
func (m *Manager) Exists(ctx context.Context, habitID int64) (bool, error) {
	_, err := m.store.Q(ctx).GetJob(ctx, JobName(habitID))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Restore arms a trigger for every enabled job in the registry.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	jobs, err := m.store.Q(ctx).ListEnabledJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	n := 0
	for _, j := range jobs {
		if err := m.arm(j); err != nil {
			m.log.Warn("restore job failed", logx.String("job", j.Name), logx.Err(err))
			continue
		}
		n++
	}
	m.log.Info("reminders restored", logx.Int("count", n), logx.Int("registered", len(jobs)))
	return n, nil
}

func (m *Manager) arm(j storage.Job) error {
	if j.IntervalDays <= 0 {
		return fmt.Errorf("job %s: interval must be positive", j.Name)
	}
	return m.trigger.AddInterval(j.Name, time.Duration(j.IntervalDays)*m.dayLength, func(ctx context.Context) error {
		return m.fire(ctx, j.Name)
	})
}

// fire runs one reminder. The registry row is reloaded so a job deleted or
// disabled after arming never sends.
func (m *Manager) fire(ctx context.Context, name string) error {
	q := m.store.Q(ctx)
	j, err := q.GetJob(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		m.trigger.Remove(name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", name, err)
	}
	if !j.Enabled {
		return nil
	}
	if j.Task != TaskSendTelegram {
		return fmt.Errorf("job %s: unknown task %q", name, j.Task)
	}

	var p Payload
	if err := json.Unmarshal([]byte(j.Payload), &p); err != nil {
		return fmt.Errorf("job %s: bad payload: %w", name, err)
	}
	habitID, _ := strconv.ParseInt(name, 10, 64)
	m.disp.Dispatch(ctx, habitID, p)

	if err := q.MarkJobRun(ctx, name, m.now()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("mark job %s: %w", name, err)
	}
	return nil
}
