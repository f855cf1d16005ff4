package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "habitbot/pkg/logx"
)

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	dsn, err := sqliteDSN(cfg.DSN, cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; WithTx keeps all queries of a
	// transaction on that one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return NewWithDB(db, dialectSQLite, log), nil
}

// sqliteDSN turns a path (or file: URI) into a modernc DSN with the pragmas
// the schema relies on.
func sqliteDSN(raw string, busy time.Duration) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("sqlite dsn (database path) is required")
	}
	if busy <= 0 {
		busy = 5 * time.Second
	}

	path, query, _ := strings.Cut(strings.TrimPrefix(raw, "file:"), "?")
	if path != ":memory:" && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
	}
	vals, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("sqlite dsn: %w", err)
	}
	vals.Add("_pragma", "foreign_keys(1)")
	vals.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if path != ":memory:" {
		vals.Add("_pragma", "journal_mode(WAL)")
	}
	vals.Set("_time_format", "sqlite")
	return "file:" + path + "?" + vals.Encode(), nil
}
