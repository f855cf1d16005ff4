package app

import (
	"fmt"
	"strings"
	"time"

	"habitbot/internal/config"
	"habitbot/internal/storage"
)

const defaultSQLitePath = "./data/habitbot.db"

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, fmt.Errorf("config is nil")
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	dsn := strings.TrimSpace(sc.DSN)

	switch driver {
	case "", "sqlite", "sqlite3":
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		if busy == 0 {
			busy = 5 * time.Second
		}
		return storage.Config{Driver: "sqlite", DSN: dsn, BusyTimeout: busy}, nil
	case "postgres", "postgresql":
		if dsn == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required when storage.driver=%s", driver)
		}
		return storage.Config{Driver: "postgres", DSN: dsn}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
