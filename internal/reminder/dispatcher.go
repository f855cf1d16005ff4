package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitbot/internal/eventbus"
	"habitbot/internal/transport"
	logx "habitbot/pkg/logx"
)

// ErrNoChatID marks a reminder whose owner has no linked chat.
var ErrNoChatID = errors.New("reminder: owner has no telegram chat id")

// Payload is the job payload stored with each periodic job.
type Payload struct {
	ChatID *int64 `json:"chat_id"`
	Action string `json:"action"`
	Time   string `json:"time"` // HH:MM in the scheduler timezone
	Place  string `json:"place"`
}

// FormatMessage renders the reminder text.
func FormatMessage(p Payload) string {
	return fmt.Sprintf("I will %s at %s in %s", p.Action, p.Time, p.Place)
}

// Dispatcher sends reminders. Delivery failures are logged and published,
// never returned to the trigger.
type Dispatcher struct {
	sender transport.Sender
	bus    eventbus.Bus
	log    logx.Logger
}

func NewDispatcher(sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if bus == nil {
		bus = eventbus.Nop()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{sender: sender, bus: bus, log: log}
}

// Dispatch sends the reminder for habitID and reports whether it was delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, habitID int64, p Payload) bool {
	log := d.log.With(logx.Int64("habit_id", habitID))
	if p.ChatID == nil || *p.ChatID == 0 {
		log.Warn("reminder skipped: no chat id")
		d.bus.Publish(eventbus.Event{Type: eventbus.ReminderFailed, HabitID: habitID, Data: ErrNoChatID})
		return false
	}
	if d.sender == nil {
		log.Warn("reminder skipped: messaging disabled")
		return false
	}

	start := time.Now()
	if err := d.sender.Send(ctx, *p.ChatID, FormatMessage(p)); err != nil {
		log.Error("reminder delivery failed", logx.Int64("chat_id", *p.ChatID), logx.Duration("took", time.Since(start)), logx.Err(err))
		d.bus.Publish(eventbus.Event{Type: eventbus.ReminderFailed, HabitID: habitID, Data: err})
		return false
	}
	log.Info("reminder sent", logx.Int64("chat_id", *p.ChatID), logx.Duration("took", time.Since(start)))
	d.bus.Publish(eventbus.Event{Type: eventbus.ReminderSent, HabitID: habitID})
	return true
}
