package core

import (
	"context"
	"time"

	"studiopulse/internal/db"
	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/types"
)

// PreferenceResolver answers which channels a notification goes out on.
// Satisfied by prefs.Resolver.
type PreferenceResolver interface {
	ResolveDeliveries(ctx context.Context, userID string, nt types.NotificationType) ([]prefs.Delivery, error)
}

// QueueRequest is the caller-facing input for queueing a notification. When
// Channel is empty the service fans out across the user's enabled channels;
// when set, the request targets exactly that channel and must carry its own
// recipient.
type QueueRequest struct {
	UserID       string            `json:"user_id" validate:"required"`
	Type         types.NotificationType `json:"type" validate:"required"`
	Channel      types.Channel     `json:"channel,omitempty"`
	Recipient    string            `json:"recipient,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Content      string            `json:"content" validate:"required"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ScheduledFor time.Time         `json:"scheduled_for,omitempty"`
	MaxAttempts  int               `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
}

// Service is the entry point for queueing, cancelling, and inspecting
// notification jobs. Queueing is fire-and-forget past creation: the caller
// learns about synchronous validation failures only, every later outcome
// lives in the job ledger.
type Service struct {
	store    JobStore
	resolver PreferenceResolver
	enqueuer Enqueuer
	logger   types.Logger
}

// NewService creates the notification service.
func NewService(store JobStore, resolver PreferenceResolver, enqueuer Enqueuer, logger types.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Queue creates one pending job per target channel and hands each to the
// delivery queue. An explicit request channel produces exactly one job; an
// empty channel fans out per the user's preferences, and zero enabled
// channels is a valid no-op, not an error.
func (s *Service) Queue(ctx context.Context, req QueueRequest) ([]*types.NotificationJob, error) {
	specs, err := s.buildSpecs(ctx, req)
	if err != nil {
		return nil, err
	}

	jobs := make([]*types.NotificationJob, 0, len(specs))
	for _, spec := range specs {
		job, err := s.store.Create(ctx, spec)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
		s.enqueuer.Enqueue(job.Channel, job.ID, job.ScheduledFor)

		s.logger.Info("notification job queued",
			"job_id", job.ID,
			"user_id", job.UserID,
			"type", string(job.Type),
			"channel", string(job.Channel),
			"scheduled_for", job.ScheduledFor.Format(time.RFC3339),
		)
	}

	return jobs, nil
}

func (s *Service) buildSpecs(ctx context.Context, req QueueRequest) ([]types.JobSpec, error) {
	base := types.JobSpec{
		UserID:       req.UserID,
		Type:         req.Type,
		Subject:      req.Subject,
		Content:      req.Content,
		Metadata:     req.Metadata,
		ScheduledFor: req.ScheduledFor,
		MaxAttempts:  req.MaxAttempts,
	}

	if req.Channel != "" {
		base.Channel = req.Channel
		base.Recipient = req.Recipient
		return []types.JobSpec{base}, nil
	}

	deliveries, err := s.resolver.ResolveDeliveries(ctx, req.UserID, req.Type)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		s.logger.Info("no enabled channels for notification",
			"user_id", req.UserID,
			"type", string(req.Type),
		)
		return nil, nil
	}

	specs := make([]types.JobSpec, 0, len(deliveries))
	for _, d := range deliveries {
		spec := base
		spec.Channel = d.Preference.Channel
		spec.Recipient = d.Recipient
		specs = append(specs, spec)
	}
	return specs, nil
}

// Cancel withdraws a job that has not started delivering. Only pending jobs
// are cancellable; anything already claimed, finished, or dead reports a
// conflict.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	err = s.store.Transition(ctx, jobID, types.JobPending, types.JobCancelled, db.TransitionFields{})
	if err != nil {
		if types.IsStaleTransition(err) {
			return types.NewAppError(
				types.ErrCodeConflictNotCancellable,
				"job is no longer pending and cannot be cancelled",
				nil,
			)
		}
		return err
	}

	s.logger.Info("notification job cancelled",
		"job_id", job.ID,
		"user_id", job.UserID,
	)
	return nil
}

// History returns the job ledger page matching the filter.
func (s *Service) History(ctx context.Context, filter types.JobFilter) ([]*types.NotificationJob, types.PageInfo, error) {
	return s.store.ListHistory(ctx, filter)
}

// Statistics returns delivery counts grouped by type, channel, and status
// for jobs created inside [from, to).
func (s *Service) Statistics(ctx context.Context, from, to time.Time) ([]types.StatisticsBucket, error) {
	return s.store.Statistics(ctx, from, to)
}
