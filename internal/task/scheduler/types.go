package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "habitbot/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Europe/Moscow"

	// JobTimeout bounds a single run. Zero means no timeout.
	JobTimeout time.Duration

	// StartupSpread caps the random delay added to the first run of each
	// interval trigger. Zero disables the spread.
	StartupSpread time.Duration
}

// Job is the unit of work run on every trigger.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	every         time.Duration
	job           Job
	entryID       cron.EntryID
	startupSpread time.Duration
	stats         *runStats
}

type runStats struct {
	runs    atomic.Uint64
	fails   atomic.Uint64
	lastErr atomic.Value // string
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	// base is the context handed to jobs; canceled by Stop.
	base       context.Context
	baseCancel context.CancelFunc

	c    *cron.Cron
	defs map[string]*scheduleDef
}

type ScheduleInfo struct {
	Name          string        `json:"name"`
	Every         time.Duration `json:"every"`
	StartupSpread time.Duration `json:"startup_spread,omitempty"`
	Next          time.Time     `json:"next,omitempty"`
	Prev          time.Time     `json:"prev,omitempty"`
	Runs          uint64        `json:"runs"`
	Failures      uint64        `json:"failures"`
	LastErr       string        `json:"last_err,omitempty"`
}

type Snapshot struct {
	Enabled   bool           `json:"enabled"`
	Running   bool           `json:"running"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
}
