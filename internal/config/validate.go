package config

import (
	"fmt"
	"strings"
	"time"

	logx "habitbot/pkg/logx"
)

// Validate rejects configs that would fail at component construction. It is
// run on startup and before every hot-reload commit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	for path, raw := range map[string]string{
		"http.read_timeout":     cfg.HTTP.ReadTimeout,
		"http.write_timeout":    cfg.HTTP.WriteTimeout,
		"http.idle_timeout":     cfg.HTTP.IdleTimeout,
		"http.request_timeout":  cfg.HTTP.RequestTimeout,
		"auth.token_ttl":        cfg.Auth.TokenTTL,
		"telegram.timeout":      cfg.Telegram.Timeout,
		"scheduler.job_timeout": cfg.Scheduler.JobTimeout,
		"storage.busy_timeout":  cfg.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if cfg.Pagination.PageSize < 0 || cfg.Pagination.MaxPageSize < 0 {
		return fmt.Errorf("pagination sizes must be >= 0")
	}
	if cfg.Pagination.MaxPageSize > 0 && cfg.Pagination.PageSize > cfg.Pagination.MaxPageSize {
		return fmt.Errorf("pagination.page_size must be <= pagination.max_page_size")
	}
	return nil
}
