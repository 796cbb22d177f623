// Package schedule runs a job at start-up and then on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
)

// Job is one scheduled unit of work. It must honor ctx cancellation.
type Job func(ctx context.Context)

// Scheduler wraps a cron instance that never runs two jobs at once.
type Scheduler struct {
	cron     *cron.Cron
	expr     string
	schedule cron.Schedule
}

// New parses expr (standard five-field syntax or a descriptor such as
// "@every 6h") and interprets it in loc.
func New(expr string, loc *time.Location) (*Scheduler, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		expr:     expr,
		schedule: sched,
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run executes job once immediately, then on every tick until ctx is
// cancelled. It waits for a running job to finish before returning.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if _, err := s.cron.AddFunc(s.expr, func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	}); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}

	job(ctx)

	s.cron.Start()
	appLog.Info("refresh scheduled", "schedule", s.expr, "next", s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
	return nil
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
