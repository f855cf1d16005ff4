package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "habitbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "habitbot.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

type fixture struct {
	userID, placeID, actionID int64
}

func seed(t *testing.T, st *Store) fixture {
	t.Helper()
	ctx := context.Background()
	q := st.Q(ctx)
	uid, err := q.CreateUser(ctx, User{Email: "a@example.com", TelegramChatID: i64Ptr(1001)})
	require.NoError(t, err)
	pid, err := q.CreateCatalogItem(ctx, Places, CatalogItem{Name: "park"})
	require.NoError(t, err)
	aid, err := q.CreateCatalogItem(ctx, Actions, CatalogItem{Name: "walk", Description: strPtr("slowly")})
	require.NoError(t, err)
	return fixture{userID: uid, placeID: pid, actionID: aid}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestUsers(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	q := st.Q(ctx)

	id, err := q.CreateUser(ctx, User{Email: "staff@example.com", IsStaff: true})
	require.NoError(t, err)

	u, err := q.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "staff@example.com", u.Email)
	require.True(t, u.IsStaff)
	require.Nil(t, u.TelegramChatID)
	require.False(t, u.CreatedAt.IsZero())

	_, err = q.CreateUser(ctx, User{Email: "staff@example.com"})
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, q.SetUserChatID(ctx, id, i64Ptr(55)))
	u, err = q.GetUserByEmail(ctx, "staff@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(55), *u.TelegramChatID)

	_, err = q.GetUser(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogCRUDAndProtection(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	f := seed(t, st)
	q := st.Q(ctx)

	it, err := q.GetCatalogItem(ctx, Actions, f.actionID)
	require.NoError(t, err)
	require.Equal(t, "walk", it.Name)
	require.Equal(t, "slowly", *it.Description)

	it.Description = nil
	require.NoError(t, q.UpdateCatalogItem(ctx, Actions, it))
	it, err = q.GetCatalogItem(ctx, Actions, f.actionID)
	require.NoError(t, err)
	require.Nil(t, it.Description)

	_, err = q.CreateCatalogItem(ctx, Places, CatalogItem{Name: "gym"})
	require.NoError(t, err)
	items, total, err := q.ListCatalogItems(ctx, Places, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 1)
	require.Equal(t, "gym", items[0].Name)

	_, err = q.CreateHabit(ctx, Habit{
		OwnerID: &f.userID, PlaceID: f.placeID, ActionID: f.actionID,
		Periodicity: 1, ExecutionTime: 60, Reward: strPtr("tea"), TimeToPerform: time.Now(),
	})
	require.NoError(t, err)

	require.ErrorIs(t, q.DeleteCatalogItem(ctx, Places, f.placeID), ErrProtected)
	require.ErrorIs(t, q.DeleteCatalogItem(ctx, Places, 999), ErrNotFound)
	require.ErrorIs(t, q.UpdateCatalogItem(ctx, Places, CatalogItem{ID: 999, Name: "x"}), ErrNotFound)
}

func TestHabitsQueries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	f := seed(t, st)
	q := st.Q(ctx)

	at := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	pleasureID, err := q.CreateHabit(ctx, Habit{
		OwnerID: &f.userID, PlaceID: f.placeID, ActionID: f.actionID,
		IsPleasure: true, Periodicity: 1, ExecutionTime: 60, IsPublic: true, TimeToPerform: at,
	})
	require.NoError(t, err)
	linkedID, err := q.CreateHabit(ctx, Habit{
		OwnerID: &f.userID, PlaceID: f.placeID, ActionID: f.actionID,
		PleasureHabitID: &pleasureID, Periodicity: 3, ExecutionTime: 90, TimeToPerform: at,
	})
	require.NoError(t, err)

	h, err := q.GetHabit(ctx, linkedID)
	require.NoError(t, err)
	require.Equal(t, pleasureID, *h.PleasureHabitID)
	require.Nil(t, h.Reward)
	require.True(t, h.TimeToPerform.Equal(at), "time_to_perform = %v", h.TimeToPerform)

	d, err := q.GetHabitDetail(ctx, linkedID)
	require.NoError(t, err)
	require.Equal(t, "park", d.PlaceName)
	require.Equal(t, "walk", d.ActionName)
	require.Equal(t, int64(1001), *d.TelegramChatID)
	require.Equal(t, 3, d.Periodicity)

	own, total, err := q.ListHabitsByOwner(ctx, f.userID, Page{Limit: 5})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, own, 2)

	pub, total, err := q.ListPublicHabits(ctx, Page{Limit: 5})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, pleasureID, pub[0].ID)

	h.Periodicity = 5
	h.Reward = strPtr("cake")
	h.PleasureHabitID = nil
	require.NoError(t, q.UpdateHabit(ctx, h))
	h, err = q.GetHabit(ctx, linkedID)
	require.NoError(t, err)
	require.Equal(t, 5, h.Periodicity)
	require.Equal(t, "cake", *h.Reward)

	// relink, then the pleasurable habit is protected
	h.Reward = nil
	h.PleasureHabitID = &pleasureID
	require.NoError(t, q.UpdateHabit(ctx, h))
	require.ErrorIs(t, q.DeleteHabit(ctx, pleasureID), ErrProtected)
	require.NoError(t, q.DeleteHabit(ctx, linkedID))
	require.NoError(t, q.DeleteHabit(ctx, pleasureID))
	require.ErrorIs(t, q.DeleteHabit(ctx, pleasureID), ErrNotFound)
}

func TestForeignKeysEnforced(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, err := st.Q(ctx).CreateHabit(ctx, Habit{PlaceID: 42, ActionID: 42, Periodicity: 1, ExecutionTime: 1, TimeToPerform: time.Now()})
	require.ErrorIs(t, err, ErrProtected)
}

func TestJobs(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	q := st.Q(ctx)

	j := Job{Name: "1", Task: "send_telegram_message", IntervalDays: 2, Payload: `{"chat_id":1}`, Enabled: true}
	require.NoError(t, q.CreateJob(ctx, j))
	require.ErrorIs(t, q.CreateJob(ctx, j), ErrJobExists)

	got, err := q.GetJob(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 2, got.IntervalDays)
	require.Nil(t, got.LastRunAt)
	require.Zero(t, got.TotalRunCount)

	now := time.Now()
	require.NoError(t, q.MarkJobRun(ctx, "1", now))
	require.NoError(t, q.MarkJobRun(ctx, "1", now))
	got, err = q.GetJob(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.TotalRunCount)
	require.NotNil(t, got.LastRunAt)

	require.NoError(t, q.CreateJob(ctx, Job{Name: "2", Task: "t", IntervalDays: 1, Payload: "{}", Enabled: true}))
	require.NoError(t, q.SetJobEnabled(ctx, "2", false))
	jobs, err := q.ListEnabledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "1", jobs[0].Name)

	ok, err := q.DeleteJob(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = q.DeleteJob(ctx, "1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithTxRollbackAndAfterCommit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ran := false
	boom := errors.New("boom")
	err := st.WithTx(ctx, func(ctx context.Context, q *Q) error {
		_, err := q.CreateCatalogItem(ctx, Places, CatalogItem{Name: "gone"})
		require.NoError(t, err)
		AfterCommit(ctx, func() { ran = true })
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, ran)
	_, total, err := st.Q(ctx).ListCatalogItems(ctx, Places, Page{})
	require.NoError(t, err)
	require.Zero(t, total)

	err = st.WithTx(ctx, func(ctx context.Context, q *Q) error {
		// nested calls and Q(ctx) join the same transaction
		return st.WithTx(ctx, func(ctx context.Context, _ *Q) error {
			_, err := st.Q(ctx).CreateCatalogItem(ctx, Places, CatalogItem{Name: "kept"})
			AfterCommit(ctx, func() { ran = true })
			return err
		})
	})
	require.NoError(t, err)
	require.True(t, ran)
	_, total, err = st.Q(ctx).ListCatalogItems(ctx, Places, Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	dsn, err := sqliteDSN(filepath.Join(dir, "sub", "x.db"), 0)
	require.NoError(t, err)
	require.Contains(t, dsn, "foreign_keys%281%29")
	require.Contains(t, dsn, "busy_timeout%285000%29")

	_, err = sqliteDSN(" ", 0)
	require.Error(t, err)
}
