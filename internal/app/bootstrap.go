package app

import (
	"context"
	"fmt"

	"habitbot/internal/config"
	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// Base is what every command needs before doing real work: the committed
// config and a running logger.
type Base struct {
	Config *config.ConfigManager
	Cfg    *config.Config
	Logs   *logx.Service
	Log    logx.Logger
}

// Bootstrap loads and validates the config file and starts logging.
func Bootstrap(cfgPath string) (*Base, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logs, log := logx.New(cfg.Logging.ToLogx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	return &Base{Config: cfgm, Cfg: cfg, Logs: logs, Log: log}, nil
}

// OpenStore opens the configured database and applies migrations.
func (b *Base) OpenStore(ctx context.Context) (*storage.Store, error) {
	sc, err := mapStorageConfig(b.Cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, sc, b.Log.With(logx.String("comp", "storage")))
}

// Close flushes and closes log outputs.
func (b *Base) Close() {
	if b.Logs != nil {
		_ = b.Logs.Close()
	}
}
