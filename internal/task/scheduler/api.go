package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "habitbot/pkg/logx"
)

var (
	ErrNameRequired    = errors.New("schedule name required")
	ErrInvalidInterval = errors.New("schedule interval must be positive")
)

// AddInterval registers job to run every interval under name. An existing
// schedule with the same name is replaced.
func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if every <= 0 {
		return ErrInvalidInterval
	}
	if job == nil {
		return errors.New("schedule job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &scheduleDef{name: name, every: every, job: job, stats: &runStats{}}
	s.defs[name] = d
	if s.c != nil {
		s.addCronLocked(d)
		e := s.c.Entry(d.entryID)
		s.log.Debug("schedule registered",
			logx.String("name", name),
			logx.Duration("every", every),
			logx.Duration("spread", d.startupSpread),
			logx.Time("next", e.Next),
		)
	}
	return nil
}

// Remove unschedules name. It reports whether something was removed and is
// safe to call when the scheduler is stopped.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// removeLocked drops the definition and its cron entry. Call with s.mu held.
func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

// addCronLocked arms d on the running cron. Call with s.mu held and s.c set.
func (s *Service) addCronLocked(d *scheduleDef) {
	sched, jitter := makeIntervalScheduleWithSpread(d.every, s.cfg.StartupSpread, time.Now().In(s.loc), d.name)
	d.startupSpread = jitter
	d.entryID = s.c.Schedule(sched, cron.FuncJob(s.wrap(d)))
}

func (s *Service) wrap(d *scheduleDef) func() {
	base := s.base
	timeout := s.cfg.JobTimeout
	return func() {
		if base == nil || base.Err() != nil {
			return
		}
		ctx := base
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(base, timeout)
			defer cancel()
		}
		start := time.Now()
		err := d.job(ctx)
		d.stats.runs.Add(1)
		if err != nil {
			d.stats.fails.Add(1)
			d.stats.lastErr.Store(err.Error())
			s.log.Warn("scheduled job failed", logx.String("name", d.name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("scheduled job done", logx.String("name", d.name), logx.Duration("took", time.Since(start)))
	}
}
