package scheduler

import (
	"context"
	"fmt"
	"time"

	"studiopulse/internal/notify/summary"
	"studiopulse/internal/types"
)

// DefaultSummaryTime is the wall-clock delivery time used when a user's
// daily summary preference has no time configured. Format: "HH:MM" in 24h.
const DefaultSummaryTime = "08:00"

// DefaultSummaryTimezone is the fallback when a preference row carries no
// timezone.
const DefaultSummaryTimezone = "UTC"

// SummaryDirectory lists the users who want a daily summary and resolves
// their contact records for display names.
type SummaryDirectory interface {
	ListUsersWithEnabledChannel(ctx context.Context, nt types.NotificationType) ([]string, error)
	GetContact(ctx context.Context, userID string) (*types.UserContact, error)
}

// TrainerAgenda provides the appointments that go into a trainer's summary.
type TrainerAgenda interface {
	ListForTrainerBetween(ctx context.Context, trainerID string, from, to time.Time) ([]types.Appointment, error)
}

// SummaryComposer renders summary content for one trainer's day.
type SummaryComposer interface {
	Build(ctx context.Context, input types.SummaryInput) types.SummaryContent
}

// DailySummaryTrigger creates one daily summary job per user and enabled
// channel, scheduled at the next occurrence of the user's preferred local
// time. Re-runs are idempotent: a (user, local day) that already has a
// non-dead job on a channel is skipped for that channel.
type DailySummaryTrigger struct {
	directory SummaryDirectory
	resolver  DeliveryResolver
	agenda    TrainerAgenda
	composer  SummaryComposer
	jobs      JobLedger
	enqueuer  Enqueuer
	logger    types.Logger
}

// NewDailySummaryTrigger wires the daily summary trigger.
func NewDailySummaryTrigger(
	directory SummaryDirectory,
	resolver DeliveryResolver,
	agenda TrainerAgenda,
	composer SummaryComposer,
	jobs JobLedger,
	enqueuer Enqueuer,
	logger types.Logger,
) *DailySummaryTrigger {
	if logger == nil {
		logger = types.NopLogger()
	}
	return &DailySummaryTrigger{
		directory: directory,
		resolver:  resolver,
		agenda:    agenda,
		composer:  composer,
		jobs:      jobs,
		enqueuer:  enqueuer,
		logger:    logger,
	}
}

// Run implements Trigger. It returns the number of jobs created. One user
// failing never blocks the rest; failed users are retried on the next tick
// since their dedup keys were never claimed.
func (t *DailySummaryTrigger) Run(ctx context.Context, now time.Time) (int, error) {
	users, err := t.directory.ListUsersWithEnabledChannel(ctx, types.NotificationDailySummary)
	if err != nil {
		return 0, fmt.Errorf("listing daily summary users: %w", err)
	}

	created := 0
	for _, userID := range users {
		n, userErr := t.processUser(ctx, userID, now)
		if userErr != nil {
			t.logger.Error("daily summary trigger failed for user",
				"user_id", userID,
				"error", userErr.Error(),
			)
			continue
		}
		created += n
	}
	return created, nil
}

func (t *DailySummaryTrigger) processUser(ctx context.Context, userID string, now time.Time) (int, error) {
	deliveries, err := t.resolver.ResolveDeliveries(ctx, userID, types.NotificationDailySummary)
	if err != nil {
		return 0, fmt.Errorf("resolving deliveries: %w", err)
	}
	if len(deliveries) == 0 {
		return 0, nil
	}

	contact, err := t.directory.GetContact(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("loading contact: %w", err)
	}

	// Deliveries on the same local day share one rendered summary, so the
	// text generator is called at most once per (user, day).
	contents := make(map[string]types.SummaryContent)

	created := 0
	for _, d := range deliveries {
		runAt, localDay, buildErr := t.nextRun(now, d.Preference)
		if buildErr != nil {
			t.logger.Warn("skipping channel with unusable schedule",
				"user_id", userID,
				"channel", string(d.Preference.Channel),
				"error", buildErr.Error(),
			)
			continue
		}

		dedupKey := fmt.Sprintf("daily:%s:%s", userID, localDay)
		existing, findErr := t.jobs.FindActiveByDedupKey(ctx, dedupKey)
		if findErr != nil {
			return created, fmt.Errorf("checking dedup key %s: %w", dedupKey, findErr)
		}
		if hasChannel(existing, d.Preference.Channel) {
			continue
		}

		content, ok := contents[localDay]
		if !ok {
			content, buildErr = t.compose(ctx, userID, contact, runAt, d.Preference)
			if buildErr != nil {
				return created, buildErr
			}
			contents[localDay] = content
		}

		job, createErr := t.jobs.Create(ctx, types.JobSpec{
			UserID:       userID,
			Type:         types.NotificationDailySummary,
			Channel:      d.Preference.Channel,
			Recipient:    d.Recipient,
			Subject:      content.Subject,
			Content:      content.Body,
			Metadata:     map[string]string{types.MetadataDedupKey: dedupKey},
			ScheduledFor: runAt,
		})
		if createErr != nil {
			return created, fmt.Errorf("creating summary job: %w", createErr)
		}

		t.enqueuer.Enqueue(job.Channel, job.ID, job.ScheduledFor)
		created++

		t.logger.Info("daily summary scheduled",
			"user_id", userID,
			"channel", string(job.Channel),
			"scheduled_for", job.ScheduledFor.Format(time.RFC3339),
		)
	}
	return created, nil
}

// nextRun resolves the next UTC instant of the preference's wall-clock time
// and the local calendar day that instant falls on.
func (t *DailySummaryTrigger) nextRun(now time.Time, pref types.ChannelPreference) (time.Time, string, error) {
	tz := pref.Timezone
	if tz == "" {
		tz = DefaultSummaryTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	at := pref.Time
	if at == "" {
		at = DefaultSummaryTime
	}
	hour, minute, err := parseTimeOfDay(at)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid delivery time: %w", err)
	}

	next := nextWallClock(now, hour, minute, loc)
	return next.UTC(), next.In(loc).Format("2006-01-02"), nil
}

func (t *DailySummaryTrigger) compose(ctx context.Context, userID string, contact *types.UserContact, runAt time.Time, pref types.ChannelPreference) (types.SummaryContent, error) {
	loc := time.UTC
	if pref.Timezone != "" {
		if l, err := time.LoadLocation(pref.Timezone); err == nil {
			loc = l
		}
	}
	localDate := runAt.In(loc)
	from, to := summary.Window(localDate, loc)

	appointments, err := t.agenda.ListForTrainerBetween(ctx, userID, from, to)
	if err != nil {
		return types.SummaryContent{}, fmt.Errorf("listing appointments: %w", err)
	}

	name := userID
	if contact != nil && contact.DisplayName != "" {
		name = contact.DisplayName
	}

	return t.composer.Build(ctx, types.SummaryInput{
		UserName:     name,
		Date:         localDate,
		Appointments: appointments,
	}), nil
}

// hasChannel reports whether any existing job for the dedup key already
// covers the channel. Channels are deduplicated independently so a partial
// failure mid-fanout only re-creates the channels that were never written.
func hasChannel(jobs []*types.NotificationJob, ch types.Channel) bool {
	for _, j := range jobs {
		if j.Channel == ch {
			return true
		}
	}
	return false
}
