// Package scheduler implements the recurring notification triggers: the
// daily summary fan-out and the appointment reminder scan. Both triggers
// are idempotent per logical event, so re-running a missed or duplicated
// cron tick never produces duplicate notifications.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/types"
)

// JobLedger is the subset of the job store the triggers need: creating jobs
// and checking whether a logical event already has one.
type JobLedger interface {
	Create(ctx context.Context, spec types.JobSpec) (*types.NotificationJob, error)
	FindActiveByDedupKey(ctx context.Context, key string) ([]*types.NotificationJob, error)
}

// Enqueuer hands freshly created jobs to the in-memory delivery queue.
type Enqueuer interface {
	Enqueue(channel types.Channel, jobID string, readyAt time.Time)
}

// DeliveryResolver resolves a user's enabled channels and addresses for a
// notification type.
type DeliveryResolver interface {
	ResolveDeliveries(ctx context.Context, userID string, nt types.NotificationType) ([]prefs.Delivery, error)
}

// Runner owns the cron process that fires the triggers. Trigger errors are
// logged and swallowed; the next tick retries whatever is still pending
// because the dedup keys make every trigger re-runnable.
type Runner struct {
	cron   *cron.Cron
	logger types.Logger
}

// Trigger is one schedulable unit of work. Run receives the tick time so
// the triggers stay deterministic under test.
type Trigger interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// NewRunner builds a Runner with no triggers registered. The cron instance
// interprets specs in UTC; per-user timezone math happens inside the
// triggers themselves.
func NewRunner(logger types.Logger) *Runner {
	if logger == nil {
		logger = types.NopLogger()
	}
	return &Runner{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// Register schedules a trigger under the given cron spec.
func (r *Runner) Register(ctx context.Context, name, spec string, trig Trigger) error {
	_, err := r.cron.AddFunc(spec, func() {
		start := time.Now().UTC()
		created, runErr := trig.Run(ctx, start)
		if runErr != nil {
			r.logger.Error("scheduled trigger failed",
				"trigger", name,
				"error", runErr.Error(),
			)
			return
		}
		r.logger.Info("scheduled trigger complete",
			"trigger", name,
			"jobs_created", created,
			"elapsed", time.Since(start).String(),
		)
	})
	if err != nil {
		return fmt.Errorf("registering trigger %s with spec %q: %w", name, spec, err)
	}
	return nil
}

// Start launches the cron loop in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for any in-flight trigger to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// parseTimeOfDay parses a "HH:MM" string into hour and minute components.
// The input must be exactly five characters; trailing content is rejected.
func parseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	var hour, minute int
	n, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}

// nextWallClock returns the next occurrence of hour:minute in loc at or
// after now. If the target has already passed today it advances to
// tomorrow. time.Date in a concrete Location handles DST transitions.
func nextWallClock(now time.Time, hour, minute int, loc *time.Location) time.Time {
	localNow := now.In(loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, minute, 0, 0, loc)
	if today.After(now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}
