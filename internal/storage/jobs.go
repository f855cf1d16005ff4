package storage

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var jobColumns = []string{
	"name", "task", "interval_days", "payload", "enabled",
	"created_at", "last_run_at", "total_run_count",
}

// CreateJob registers j. A job with the same name yields ErrJobExists.
func (q *Q) CreateJob(ctx context.Context, j Job) error {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := q.exec(ctx, q.sb.Insert("periodic_jobs").
		Columns("name", "task", "interval_days", "payload", "enabled", "created_at").
		Values(j.Name, j.Task, j.IntervalDays, j.Payload, j.Enabled, j.CreatedAt.UTC()))
	if errors.Is(err, ErrConflict) {
		return ErrJobExists
	}
	return err
}

func (q *Q) GetJob(ctx context.Context, name string) (Job, error) {
	var j Job
	err := q.get(ctx, &j, q.sb.Select(jobColumns...).From("periodic_jobs").Where(sq.Eq{"name": name}))
	return j, err
}

// DeleteJob removes the job and reports whether it existed.
func (q *Q) DeleteJob(ctx context.Context, name string) (bool, error) {
	err := q.execOne(ctx, q.sb.Delete("periodic_jobs").Where(sq.Eq{"name": name}))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (q *Q) ListEnabledJobs(ctx context.Context) ([]Job, error) {
	out := []Job{}
	err := q.selectAll(ctx, &out, q.sb.Select(jobColumns...).From("periodic_jobs").
		Where(sq.Eq{"enabled": true}).OrderBy("name"))
	return out, err
}

// MarkJobRun records a completed run.
func (q *Q) MarkJobRun(ctx context.Context, name string, at time.Time) error {
	return q.execOne(ctx, q.sb.Update("periodic_jobs").
		Set("last_run_at", at.UTC()).
		Set("total_run_count", sq.Expr("total_run_count + 1")).
		Where(sq.Eq{"name": name}))
}

// SetJobEnabled toggles a job without removing it.
func (q *Q) SetJobEnabled(ctx context.Context, name string, enabled bool) error {
	return q.execOne(ctx, q.sb.Update("periodic_jobs").Set("enabled", enabled).Where(sq.Eq{"name": name}))
}
