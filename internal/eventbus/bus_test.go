package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: HabitCreated, HabitID: 1})
	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != HabitCreated || e.HabitID != 1 || e.Time.IsZero() {
				t.Fatalf("unexpected event: %+v", e)
			}
		default:
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: HabitCreated})
	b.Publish(Event{Type: HabitDeleted}) // dropped
	if e := <-ch; e.Type != HabitCreated {
		t.Fatalf("got %s", e.Type)
	}
	unsub()
	unsub()
	b.Publish(Event{Type: HabitUpdated}) // no subscribers, no panic
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
}

func TestStatsRun(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(8)
	st := NewStats()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		st.Run(ctx, ch)
		close(done)
	}()

	b.Publish(Event{Type: ReminderSent, HabitID: 2})
	b.Publish(Event{Type: ReminderFailed, HabitID: 2, Data: errors.New("telegram down")})
	unsub()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after unsubscribe")
	}
	snap := st.Snapshot()
	if snap.RemindersSent != 1 || snap.RemindersFailed != 1 || snap.LastFailure != "telegram down" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
