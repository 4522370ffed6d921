// Package scheduler provides cron-based job scheduling for the companion
// service, primarily the periodic proactive sweep over known characters.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs the proactive sweep every 15 minutes. Sweeps are
// idempotent thanks to the proactive cooldown, so a tighter spec only wastes
// work.
const DefaultSweepSpec = "*/15 * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic
	// recovery so one bad job cannot take the scheduler down.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	slog.Debug("Scheduler started")
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err != nil {
		slog.Error("Scheduler failed to add job", "error", err, "expr", expr)
		return err
	}
	slog.Debug("Scheduler job added", "expr", expr)
	return nil
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	slog.Debug("Scheduler stopping")
	s.cron.Stop()
}
