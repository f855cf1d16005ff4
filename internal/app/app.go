package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitbot/internal/auth"
	"habitbot/internal/config"
	"habitbot/internal/eventbus"
	"habitbot/internal/habits"
	"habitbot/internal/httpapi"
	"habitbot/internal/reminder"
	"habitbot/internal/runtime/supervisor"
	"habitbot/internal/storage"
	"habitbot/internal/task/scheduler"
	"habitbot/internal/transport"
	"habitbot/internal/transport/telegram"
	logx "habitbot/pkg/logx"
)

type App struct {
	base *Base
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	stats *eventbus.Stats
	store *storage.Store

	sched     *scheduler.Service
	reminders *reminder.Manager
	api       *httpapi.API
	http      *httpapi.Server
}

// NewApp wires every component from the committed config. Nothing runs
// until Start.
func NewApp(ctx context.Context, base *Base) (*App, error) {
	cfg := base.Cfg
	log := base.Log.With(logx.String("comp", "app"))

	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return nil, errors.New("auth.jwt_secret is required (or HABITBOT_JWT_SECRET)")
	}

	store, err := base.OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	var sender transport.Sender
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := telegram.New(mapTelegramConfig(cfg), base.Log.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		sender = tg
	} else {
		log.Warn("telegram.token is empty; reminders will be skipped")
	}

	sched := scheduler.New(mapSchedulerConfig(cfg), base.Log.With(logx.String("comp", "scheduler")))
	disp := reminder.NewDispatcher(sender, bus, base.Log.With(logx.String("comp", "reminder")))
	reminders := reminder.NewManager(store, sched, disp, base.Log.With(logx.String("comp", "schedule")))

	habitSvc := habits.NewService(store, reminders, bus, base.Log.With(logx.String("comp", "habits")))
	pageSize, maxPage := cfg.Pagination.PageSizes()

	a := &App{
		base:      base,
		cfgm:      base.Config,
		log:       log,
		logs:      base.Logs,
		bus:       bus,
		stats:     eventbus.NewStats(),
		store:     store,
		sched:     sched,
		reminders: reminders,
	}
	a.api = httpapi.NewAPI(httpapi.Deps{
		Habits:   habitSvc,
		Places:   habits.NewCatalogService(store, storage.Places, base.Log),
		Actions:  habits.NewCatalogService(store, storage.Actions, base.Log),
		Auth:     auth.NewAuthenticator([]byte(secret), store),
		Health:   a.health,
		PageSize: pageSize,
		MaxPage:  maxPage,
		Log:      base.Log,
	})
	a.http = httpapi.NewServer(mapServerConfig(cfg), a.api.Handler(), base.Log)
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.sched.Start(runCtx)
	n, err := a.reminders.Restore(runCtx)
	if err != nil {
		return fmt.Errorf("restore reminders: %w", err)
	}

	statsEvents, unsubStats := a.bus.Subscribe(256)
	a.sup.Go0("eventbus.stats", func(c context.Context) {
		defer unsubStats()
		a.stats.Run(c, statsEvents)
	})

	logEvents, unsubLog := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsubLog()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-logEvents:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Int64("habit_id", e.HabitID), logx.Time("time", e.Time))
			}
		}
	})

	a.sup.GoRestart("http.serve", a.http.Serve, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.Int("reminders", n), logx.Bool("scheduler", a.sched.Enabled()))
	return nil
}

// health feeds /healthz.
func (a *App) health(ctx context.Context) map[string]any {
	out := map[string]any{
		"scheduler": a.sched.Snapshot(),
		"events":    a.stats.Snapshot(),
	}
	if a.sup != nil {
		out["loops"] = a.sup.Snapshot().Loops
	}
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := a.store.Ping(pctx); err != nil {
		out["status"] = "degraded"
		out["storage"] = "unreachable"
	} else {
		out["storage"] = "ok"
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// cancel the run context first so loops start unwinding
	a.sup.Cancel()

	// step runs one shutdown step bounded by max; one stuck component cannot
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 6*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	a.base.Close()
	return nil
}
