// Package core contains the delivery pipeline: the job service that turns
// queue requests into per-channel jobs, and the dispatcher worker pools that
// drain the delivery queue through the channel transports. State management,
// retry policy, and delivery observability live here so every channel behaves
// the same way.
package core

import (
	"context"
	"time"

	"studiopulse/internal/db"
	"studiopulse/internal/types"
)

// JobStore is the persistence surface the notification core depends on.
// Satisfied by db.JobRepository; the narrow interface keeps the service and
// dispatcher testable with lightweight fakes.
type JobStore interface {
	Create(ctx context.Context, spec types.JobSpec) (*types.NotificationJob, error)
	Get(ctx context.Context, id string) (*types.NotificationJob, error)

	// Transition is the compare-and-set status update. Zero matched rows
	// surfaces as a StaleTransition AppError.
	Transition(ctx context.Context, id string, from, to types.JobStatus, fields db.TransitionFields) error

	IncrementAttempt(ctx context.Context, id string) (int, error)
	ListDue(ctx context.Context, channel types.Channel, now time.Time, limit int) ([]*types.NotificationJob, error)
	ListHistory(ctx context.Context, filter types.JobFilter) ([]*types.NotificationJob, types.PageInfo, error)
	Statistics(ctx context.Context, from, to time.Time) ([]types.StatisticsBucket, error)
	FindActiveByDedupKey(ctx context.Context, key string) ([]*types.NotificationJob, error)
}

// Transport sends one job through one delivery channel. Implementations live
// in internal/external. Send returns the provider's message ID when the
// provider reports one; transports do not retry, the dispatcher owns the
// retry policy.
type Transport interface {
	Channel() types.Channel
	Send(ctx context.Context, job *types.NotificationJob) (providerMsgID string, err error)
}

// Enqueuer is the write side of the delivery queue the service and
// dispatcher push tickets into. Satisfied by queue.DeliveryQueue.
type Enqueuer interface {
	Enqueue(channel types.Channel, jobID string, readyAt time.Time)
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricRetry   MetricResult = "retry"
	MetricDead    MetricResult = "dead"
	MetricSkipped MetricResult = "skipped"
)

// DeliveryMetrics abstracts telemetry for the dispatch pipeline.
type DeliveryMetrics interface {
	RecordDelivery(ctx context.Context, channel types.Channel, result MetricResult)
	RecordLatency(ctx context.Context, channel types.Channel, duration time.Duration)
}
