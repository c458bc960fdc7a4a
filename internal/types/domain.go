// Package types defines the shared domain model for the StudioPulse
// notification platform: notification jobs and their lifecycle, user schedule
// preferences, appointment read models, and the error/logging primitives used
// by every other package.
package types

import (
	"time"
)

// NotificationType categorizes the business event a notification describes.
type NotificationType string

const (
	NotificationDailySummary        NotificationType = "daily_summary"
	NotificationAppointmentReminder NotificationType = "appointment_reminder"
	NotificationPaymentReceipt      NotificationType = "payment_receipt"
	NotificationSessionSummary      NotificationType = "session_summary"
	NotificationMarketing           NotificationType = "marketing"
)

// ValidNotificationType reports whether t is one of the known notification types.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationDailySummary, NotificationAppointmentReminder,
		NotificationPaymentReceipt, NotificationSessionSummary, NotificationMarketing:
		return true
	}
	return false
}

// Channel identifies a delivery transport category.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// AllChannels lists every supported channel. Worker pools and the statistics
// projection iterate this slice, so a new channel only needs to be added here.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a notification job.
//
// Legal transitions (enforced by the job store's compare-and-set):
//
//	pending   -> in_flight | cancelled
//	in_flight -> sent | pending (retry) | dead
//
// sent, dead, and cancelled are terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobInFlight  JobStatus = "in_flight"
	JobSent      JobStatus = "sent"
	JobDead      JobStatus = "dead"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobSent || s == JobDead || s == JobCancelled
}

// DefaultMaxAttempts is the attempt budget applied to jobs that do not
// specify their own.
const DefaultMaxAttempts = 3

// MetadataDedupKey is the metadata key under which the scheduler stores the
// logical-event identity of a job (e.g. "daily:user123:2024-03-10" or
// "reminder:apt42:24h"). Trigger idempotency checks query on it.
const MetadataDedupKey = "dedup_key"

// NotificationJob is the durable record of one scheduled attempt to deliver
// a notification through one channel to one recipient. Jobs are created once,
// mutated only by the dispatcher, and never deleted; the jobs table doubles
// as the delivery audit ledger.
type NotificationJob struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Type         NotificationType  `json:"type"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Content      string            `json:"content"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	Status       JobStatus         `json:"status"`
	Attempts     int               `json:"attempts"`
	MaxAttempts  int               `json:"max_attempts"`
	LastError    string            `json:"last_error,omitempty"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// JobSpec is the caller-facing input for creating a notification job.
// Validation happens synchronously in the job store's Create.
type JobSpec struct {
	UserID       string            `json:"user_id" validate:"required"`
	Type         NotificationType  `json:"type" validate:"required"`
	Channel      Channel           `json:"channel,omitempty"`
	Recipient    string            `json:"recipient,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Content      string            `json:"content" validate:"required"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ScheduledFor time.Time         `json:"scheduled_for,omitempty"`
	MaxAttempts  int               `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
}

// UserSchedulePreference is a row of the preference store: whether a user
// wants a notification type on a given channel, and (for recurring
// notifications) at which local wall-clock time.
type UserSchedulePreference struct {
	UserID   string
	Type     NotificationType
	Channel  Channel
	Enabled  bool
	Time     string // "HH:MM", 24h, in the user's timezone
	Timezone string // IANA zone id, e.g. "America/Toronto"
}

// ChannelPreference is the resolved output of the preference resolver:
// one enabled channel plus its schedule hint.
type ChannelPreference struct {
	Channel  Channel
	Time     string
	Timezone string
}

// Appointment is the read-only projection of the scheduling tables that the
// notification core consumes. The core never writes appointments.
type Appointment struct {
	ID        string
	TrainerID string
	ClientID  string
	Title     string
	Location  string
	StartsAt  time.Time
	EndsAt    time.Time
}

// UserContact holds the per-channel delivery addresses for a user. A nil or
// empty field means the user has no address for that channel, which disables
// it regardless of preference.
type UserContact struct {
	UserID           string
	DisplayName      string
	Email            string
	Phone            string
	PushSubscription string // serialized Web Push subscription JSON
}

// JobFilter selects jobs for the history listing.
type JobFilter struct {
	UserID   string
	Types    []NotificationType
	Channels []Channel
	Statuses []JobStatus

	// Cursor pagination over created_at, newest first.
	Cursor string
	Limit  int
}

// StatisticsBucket is one row of the statistics projection: a count of jobs
// grouped by type, channel, and status inside the queried date range.
type StatisticsBucket struct {
	Type    NotificationType `json:"type"`
	Channel Channel          `json:"channel"`
	Status  JobStatus        `json:"status"`
	Count   int64            `json:"count"`
}

// SummaryInput is the structured input to the summary builder.
type SummaryInput struct {
	UserName     string
	Date         time.Time
	Appointments []Appointment
	Notes        []string
}

// SummaryContent is the rendered output of the summary builder.
type SummaryContent struct {
	Subject string
	Body    string
}
