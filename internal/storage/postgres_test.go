package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	logx "habitbot/pkg/logx"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres"), dialectPostgres, logx.Nop()), mock
}

func TestPostgresPlaceholders(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, description FROM places WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).AddRow(7, "park", nil))

	it, err := st.Q(ctx).GetCatalogItem(ctx, Places, 7)
	require.NoError(t, err)
	require.Equal(t, "park", it.Name)
	require.Nil(t, it.Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertReturning(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO actions (name,description) VALUES ($1,$2) RETURNING id`)).
		WithArgs("walk", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	id, err := st.Q(ctx).CreateCatalogItem(ctx, Actions, CatalogItem{Name: "walk"})
	require.NoError(t, err)
	require.Equal(t, int64(3), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresErrorMapping(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO periodic_jobs`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	err := st.Q(ctx).CreateJob(ctx, Job{Name: "1", Task: "t", IntervalDays: 1, Payload: "{}"})
	require.ErrorIs(t, err, ErrJobExists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM habits WHERE pleasure_habit_id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM habits WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	err = st.Q(ctx).DeleteHabit(ctx, 5)
	require.ErrorIs(t, err, ErrProtected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWithTxCommits(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE periodic_jobs SET enabled = $1 WHERE name = $2`)).
		WithArgs(false, "9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.WithTx(ctx, func(ctx context.Context, q *Q) error {
		return q.SetJobEnabled(ctx, "9", false)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
