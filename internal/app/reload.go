package app

import (
	"context"
	"strings"

	"habitbot/internal/config"
	logx "habitbot/pkg/logx"
)

// reloadLoop applies committed configs published by the watcher. Only the
// sections in config.Reloadable take effect live.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts: keep only the latest config
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for these sections", logx.String("sections", strings.Join(pending, ",")))
	}

	a.logs.Apply(newCfg.Logging.ToLogx())
	a.sched.Apply(mapSchedulerConfig(newCfg))
	a.api.SetPagination(newCfg.Pagination.PageSizes())

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
