package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	logx "habitbot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// Store owns the database handle.
type Store struct {
	db      *sqlx.DB
	dialect string
	sb      sq.StatementBuilderType
	log     logx.Logger
}

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		st  *Store
		err error
	)
	switch driver {
	case "", "sqlite", "sqlite3":
		st, err = openSQLite(ctx, cfg, log)
	case "postgres", "postgresql":
		st, err = openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", st.dialect))
	return st, nil
}

// NewWithDB wraps an existing handle. dialect is "sqlite" or "postgres".
func NewWithDB(db *sqlx.DB, dialect string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == dialectPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Store{db: db, dialect: dialect, sb: sb, log: log}
}

func (s *Store) Dialect() string { return s.dialect }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/" + s.dialect + ".sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect, err)
	}
	return nil
}

type txKey struct{}

type txState struct {
	q           *Q
	afterCommit []func()
}

// Q returns a query handle bound to the transaction carried by ctx, or to
// the database when there is none.
func (s *Store) Q(ctx context.Context) *Q {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.q
	}
	return &Q{x: s.db, sb: s.sb, dialect: s.dialect}
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q *Q) error) error {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx, st.q)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	st := &txState{q: &Q{x: tx, sb: s.sb, dialect: s.dialect}}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, st), st.q); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", logx.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	for _, f := range st.afterCommit {
		f()
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without
// a transaction fn runs immediately. fn is dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.afterCommit = append(st.afterCommit, fn)
		return
	}
	fn()
}
