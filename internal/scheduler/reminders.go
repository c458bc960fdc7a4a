package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studiopulse/internal/types"
)

// AppointmentScanner lists upcoming appointments for the reminder scan.
type AppointmentScanner interface {
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]types.Appointment, error)
}

// ReminderTrigger creates appointment reminder jobs for every configured
// lead time. An appointment entering a lead window gets one job per
// participant and enabled channel; the (appointment, lead time) dedup key
// keeps hourly re-scans from creating duplicates.
type ReminderTrigger struct {
	appointments AppointmentScanner
	resolver     DeliveryResolver
	jobs         JobLedger
	enqueuer     Enqueuer
	leadTimes    []time.Duration
	logger       types.Logger
}

// NewReminderTrigger wires the reminder trigger. Lead times of zero or less
// are dropped.
func NewReminderTrigger(
	appointments AppointmentScanner,
	resolver DeliveryResolver,
	jobs JobLedger,
	enqueuer Enqueuer,
	leadTimes []time.Duration,
	logger types.Logger,
) *ReminderTrigger {
	if logger == nil {
		logger = types.NopLogger()
	}
	var leads []time.Duration
	for _, l := range leadTimes {
		if l > 0 {
			leads = append(leads, l)
		}
	}
	return &ReminderTrigger{
		appointments: appointments,
		resolver:     resolver,
		jobs:         jobs,
		enqueuer:     enqueuer,
		leadTimes:    leads,
		logger:       logger,
	}
}

// Run implements Trigger. It scans once up to the longest lead time and
// evaluates every (appointment, lead) pair against that single result set.
func (t *ReminderTrigger) Run(ctx context.Context, now time.Time) (int, error) {
	if len(t.leadTimes) == 0 {
		return 0, nil
	}

	maxLead := t.leadTimes[0]
	for _, l := range t.leadTimes[1:] {
		if l > maxLead {
			maxLead = l
		}
	}

	upcoming, err := t.appointments.ListStartingBetween(ctx, now, now.Add(maxLead))
	if err != nil {
		return 0, fmt.Errorf("listing upcoming appointments: %w", err)
	}

	created := 0
	for _, lead := range t.leadTimes {
		for _, apt := range upcoming {
			if apt.StartsAt.Sub(now) > lead {
				continue
			}
			n, aptErr := t.processAppointment(ctx, apt, lead, now)
			if aptErr != nil {
				t.logger.Error("reminder trigger failed for appointment",
					"appointment_id", apt.ID,
					"lead", formatLead(lead),
					"error", aptErr.Error(),
				)
				continue
			}
			created += n
		}
	}
	return created, nil
}

func (t *ReminderTrigger) processAppointment(ctx context.Context, apt types.Appointment, lead time.Duration, now time.Time) (int, error) {
	dedupKey := fmt.Sprintf("reminder:%s:%s", apt.ID, formatLead(lead))
	existing, err := t.jobs.FindActiveByDedupKey(ctx, dedupKey)
	if err != nil {
		return 0, fmt.Errorf("checking dedup key %s: %w", dedupKey, err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, participant := range participants(apt) {
		deliveries, resErr := t.resolver.ResolveDeliveries(ctx, participant, types.NotificationAppointmentReminder)
		if resErr != nil {
			return created, fmt.Errorf("resolving deliveries for %s: %w", participant, resErr)
		}

		for _, d := range deliveries {
			job, createErr := t.jobs.Create(ctx, types.JobSpec{
				UserID:       participant,
				Type:         types.NotificationAppointmentReminder,
				Channel:      d.Preference.Channel,
				Recipient:    d.Recipient,
				Subject:      fmt.Sprintf("Upcoming session: %s", apt.Title),
				Content:      reminderBody(apt, d.Preference.Timezone),
				Metadata:     map[string]string{types.MetadataDedupKey: dedupKey},
				ScheduledFor: now,
			})
			if createErr != nil {
				return created, fmt.Errorf("creating reminder job: %w", createErr)
			}
			t.enqueuer.Enqueue(job.Channel, job.ID, job.ScheduledFor)
			created++
		}
	}

	if created > 0 {
		t.logger.Info("appointment reminders scheduled",
			"appointment_id", apt.ID,
			"lead", formatLead(lead),
			"jobs_created", created,
		)
	}
	return created, nil
}

// participants returns the distinct users attached to an appointment.
func participants(apt types.Appointment) []string {
	var out []string
	if apt.TrainerID != "" {
		out = append(out, apt.TrainerID)
	}
	if apt.ClientID != "" && apt.ClientID != apt.TrainerID {
		out = append(out, apt.ClientID)
	}
	return out
}

// reminderBody renders the reminder text with the start time expressed in
// the recipient's timezone. An unknown timezone falls back to UTC rather
// than dropping the reminder.
func reminderBody(apt types.Appointment, tz string) string {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	when := apt.StartsAt.In(loc).Format("Monday, January 2 at 15:04")

	var b strings.Builder
	fmt.Fprintf(&b, "Your session %q starts on %s.", apt.Title, when)
	if apt.Location != "" {
		fmt.Fprintf(&b, " Location: %s.", apt.Location)
	}
	return b.String()
}

// formatLead renders a lead duration for dedup keys and logs. The output
// must be stable across runs because it is part of the dedup identity, so
// it is built from whole hour and minute components rather than
// Duration.String().
func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
