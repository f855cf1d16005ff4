package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "habitbot/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		defs: map[string]*scheduleDef{},
	}
}

// Enabled reports the current config flag. Apply may run concurrently.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Location is the timezone triggers are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		s.loc = s.loadLocationLocked()
	}
	return s.loc
}

// Apply swaps the config. A timezone change or an enable/disable flip restarts
// cron and re-registers every definition. Apply returns once jobs started by
// the previous cron have finished; it does not hold s.mu while waiting, so
// those jobs may still call Remove or AddInterval.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	if s.base == nil {
		// not started; Start picks up the new config
		s.loc = nil
		s.mu.Unlock()
		return
	}
	var drained context.Context
	if strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone) || old.Enabled != cfg.Enabled {
		drained = s.restartLocked()
	}
	s.mu.Unlock()

	if drained != nil {
		<-drained.Done()
	}
}

// Start begins triggering. Definitions registered before Start are kept and
// registered now. Jobs receive a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		return
	}
	s.base, s.baseCancel = context.WithCancel(ctx)
	_ = s.restartLocked()
}

// Stop stops triggering and cancels running jobs. Definitions remain so a
// later Start resumes them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.baseCancel
	s.base, s.baseCancel = nil, nil
	for _, d := range s.defs {
		d.entryID = 0
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// restartLocked rebuilds the cron instance. Call with s.mu held. The old
// cron stops scheduling at once; the returned context is done when its
// running jobs finish (nil if there was none). Never wait on it with s.mu
// held.
func (s *Service) restartLocked() context.Context {
	var drained context.Context
	if s.c != nil {
		drained = s.c.Stop()
		s.c = nil
		for _, d := range s.defs {
			d.entryID = 0
		}
	}
	s.loc = s.loadLocationLocked()
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled; triggers not armed", logx.Int("schedules", len(s.defs)))
		return drained
	}

	clog := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	for _, d := range s.defs {
		s.addCronLocked(d)
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
	return drained
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
