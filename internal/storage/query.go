package storage

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Q runs queries against either the database or an open transaction.
type Q struct {
	x       sqlx.ExtContext
	sb      sq.StatementBuilderType
	dialect string
}

func (q *Q) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return mapErr(sqlx.GetContext(ctx, q.x, dest, query, args...))
}

func (q *Q) selectAll(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return mapErr(sqlx.SelectContext(ctx, q.x, dest, query, args...))
}

func (q *Q) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := q.x.ExecContext(ctx, query, args...)
	return res, mapErr(err)
}

// execOne is exec that reports ErrNotFound when no row was affected.
func (q *Q) execOne(ctx context.Context, b sq.Sqlizer) error {
	res, err := q.exec(ctx, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Q) insertID(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	query, args, err := b.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := q.x.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

func (q *Q) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	var n int
	err := q.get(ctx, &n, b)
	return n, err
}

func paged(b sq.SelectBuilder, p Page) sq.SelectBuilder {
	if p.Limit > 0 {
		b = b.Limit(p.Limit)
	}
	if p.Offset > 0 {
		b = b.Offset(p.Offset)
	}
	return b
}
