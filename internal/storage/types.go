package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrProtected is returned when a row cannot be deleted because other
	// rows still reference it.
	ErrProtected = errors.New("storage: referenced by other rows")
	// ErrConflict is a unique constraint violation.
	ErrConflict = errors.New("storage: unique constraint violation")
	// ErrJobExists is returned when a job with the same name is already registered.
	ErrJobExists = errors.New("storage: job already exists")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default): DSN is a file path or a "file:" URI
//   - "postgres": DSN is a lib/pq connection string or URL
type Config struct {
	Driver      string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

type User struct {
	ID             int64     `db:"id"`
	Email          string    `db:"email"`
	TelegramChatID *int64    `db:"telegram_chat_id"`
	IsStaff        bool      `db:"is_staff"`
	CreatedAt      time.Time `db:"created_at"`
}

// CatalogItem is a row of a name/description table (places, actions).
type CatalogItem struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
}

type Habit struct {
	ID              int64     `db:"id"`
	OwnerID         *int64    `db:"owner_id"`
	PlaceID         int64     `db:"place_id"`
	ActionID        int64     `db:"action_id"`
	IsPleasure      bool      `db:"is_pleasure"`
	PleasureHabitID *int64    `db:"pleasure_habit_id"`
	Periodicity     int       `db:"periodicity"`
	Reward          *string   `db:"reward"`
	ExecutionTime   int       `db:"execution_time"`
	IsPublic        bool      `db:"is_public"`
	TimeToPerform   time.Time `db:"time_to_perform"`
}

// HabitDetail is a habit joined with the names and chat id a reminder needs.
type HabitDetail struct {
	Habit
	PlaceName      string `db:"place_name"`
	ActionName     string `db:"action_name"`
	TelegramChatID *int64 `db:"telegram_chat_id"`
}

// Job is a row of the persistent job registry.
type Job struct {
	Name          string     `db:"name"`
	Task          string     `db:"task"`
	IntervalDays  int        `db:"interval_days"`
	Payload       string     `db:"payload"` // JSON
	Enabled       bool       `db:"enabled"`
	CreatedAt     time.Time  `db:"created_at"`
	LastRunAt     *time.Time `db:"last_run_at"`
	TotalRunCount int64      `db:"total_run_count"`
}

// Page is a limit/offset window. Limit 0 means unbounded.
type Page struct {
	Limit  uint64
	Offset uint64
}
