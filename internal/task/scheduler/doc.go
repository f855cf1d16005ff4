// Package scheduler registers named interval triggers on robfig/cron and runs
// them with a per-run timeout. Registration is an upsert by name, so a name
// never has more than one live trigger.
package scheduler
