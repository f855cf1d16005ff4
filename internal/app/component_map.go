package app

import (
	"time"

	"habitbot/internal/config"
	"habitbot/internal/httpapi"
	"habitbot/internal/task/scheduler"
	"habitbot/internal/transport/telegram"
)

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:    cfg.Scheduler.Enabled,
		Timezone:   cfg.Scheduler.Timezone,
		JobTimeout: config.DurationOr(cfg.Scheduler.JobTimeout, 30*time.Second),
	}
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:      cfg.Telegram.Token,
		APIURL:     cfg.Telegram.APIURL,
		Timeout:    config.DurationOr(cfg.Telegram.Timeout, 8*time.Second),
		RatePerSec: cfg.Telegram.RatePerSec,
	}
}

func mapServerConfig(cfg *config.Config) httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    config.DurationOr(cfg.HTTP.ReadTimeout, 10*time.Second),
		WriteTimeout:   config.DurationOr(cfg.HTTP.WriteTimeout, 15*time.Second),
		IdleTimeout:    config.DurationOr(cfg.HTTP.IdleTimeout, 60*time.Second),
		RequestTimeout: config.DurationOr(cfg.HTTP.RequestTimeout, 10*time.Second),
	}
}
