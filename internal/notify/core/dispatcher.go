package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"studiopulse/internal/db"
	"studiopulse/internal/notify/queue"
	"studiopulse/internal/types"
)

// DispatcherConfig sizes the worker pools and bounds the transport calls.
type DispatcherConfig struct {
	WorkersPerChannel int
	TransportTimeout  time.Duration
	PollInterval      time.Duration
	RecoveryBatch     int
}

// Dispatcher drains the delivery queue through the channel transports. One
// pool of workers per channel; all state transitions go through the job
// store's compare-and-set, which is the only thing that makes concurrent
// workers safe. A worker that loses the claim race abandons the ticket
// silently.
type Dispatcher struct {
	store      JobStore
	queue      *queue.DeliveryQueue
	transports map[types.Channel]Transport
	backoff    queue.Backoff
	metrics    DeliveryMetrics
	logger     types.Logger
	cfg        DispatcherConfig
}

// NewDispatcher creates a dispatcher over the given transports. Channels
// without a transport get no workers; their jobs stay pending until a
// transport is configured.
func NewDispatcher(
	store JobStore,
	q *queue.DeliveryQueue,
	transports []Transport,
	backoff queue.Backoff,
	metrics DeliveryMetrics,
	logger types.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	byChannel := make(map[types.Channel]Transport, len(transports))
	for _, tr := range transports {
		byChannel[tr.Channel()] = tr
	}
	if cfg.WorkersPerChannel <= 0 {
		cfg.WorkersPerChannel = 2
	}
	if cfg.TransportTimeout <= 0 {
		cfg.TransportTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.RecoveryBatch <= 0 {
		cfg.RecoveryBatch = 500
	}
	return &Dispatcher{
		store:      store,
		queue:      q,
		transports: byChannel,
		backoff:    backoff,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run recovers queue state from the job store, then blocks running the
// worker pools and the periodic due-job rescan until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	recovered, err := d.queue.Recover(ctx, d.store, d.cfg.PollInterval, d.cfg.RecoveryBatch)
	if err != nil {
		return err
	}
	if recovered > 0 {
		d.logger.Info("recovered queued jobs from store", "count", recovered)
	}

	g, ctx := errgroup.WithContext(ctx)

	for ch := range d.transports {
		channel := ch
		for i := 0; i < d.cfg.WorkersPerChannel; i++ {
			g.Go(func() error {
				return d.workerLoop(ctx, channel)
			})
		}
	}
	g.Go(func() error {
		return d.pollLoop(ctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// workerLoop takes tickets for one channel until the context ends.
func (d *Dispatcher) workerLoop(ctx context.Context, channel types.Channel) error {
	for {
		jobID, err := d.queue.Take(ctx, channel)
		if err != nil {
			return err
		}
		d.process(ctx, channel, jobID)
	}
}

// pollLoop periodically rescans the store for due pending jobs. It backstops
// tickets lost to a crash between job creation and enqueue, and picks up
// jobs scheduled beyond the recovery horizon. Duplicate tickets are harmless;
// the claim CAS deduplicates.
func (d *Dispatcher) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cutoff := time.Now().Add(d.cfg.PollInterval)
		for ch := range d.transports {
			jobs, err := d.store.ListDue(ctx, ch, cutoff, d.cfg.RecoveryBatch)
			if err != nil {
				d.logger.Error("due-job rescan failed", "channel", string(ch), "error", err.Error())
				continue
			}
			for _, job := range jobs {
				d.queue.Enqueue(ch, job.ID, job.ScheduledFor)
			}
		}
	}
}

// process runs the full delivery attempt for one ticket.
func (d *Dispatcher) process(ctx context.Context, channel types.Channel, jobID string) {
	job, err := d.store.Get(ctx, jobID)
	if err != nil {
		d.logger.Warn("queued job not loadable", "job_id", jobID, "error", err.Error())
		return
	}

	// Cancelled jobs and duplicate tickets for completed jobs end here.
	if job.Status != types.JobPending {
		d.metrics.RecordDelivery(ctx, channel, MetricSkipped)
		return
	}

	// A ticket can surface early after a rescan enqueued it ahead of time.
	if remaining := time.Until(job.ScheduledFor); remaining > 0 {
		d.queue.Enqueue(channel, jobID, job.ScheduledFor)
		return
	}

	if err := d.store.Transition(ctx, jobID, types.JobPending, types.JobInFlight, db.TransitionFields{}); err != nil {
		if types.IsStaleTransition(err) {
			// Another worker claimed it, or it was cancelled under us.
			d.metrics.RecordDelivery(ctx, channel, MetricSkipped)
			return
		}
		d.logger.Error("failed to claim job", "job_id", jobID, "error", err.Error())
		return
	}

	attempt, err := d.store.IncrementAttempt(ctx, jobID)
	if err != nil {
		d.logger.Error("failed to record attempt", "job_id", jobID, "error", err.Error())
		attempt = job.Attempts + 1
	}

	transport := d.transports[channel]
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.TransportTimeout)
	start := time.Now()
	providerMsgID, sendErr := transport.Send(sendCtx, job)
	cancel()
	d.metrics.RecordLatency(ctx, channel, time.Since(start))

	if sendErr == nil {
		d.markSent(ctx, channel, job, providerMsgID)
		return
	}
	d.markFailed(ctx, channel, job, attempt, sendErr)
}

func (d *Dispatcher) markSent(ctx context.Context, channel types.Channel, job *types.NotificationJob, providerMsgID string) {
	now := time.Now().UTC()
	if err := d.store.Transition(ctx, job.ID, types.JobInFlight, types.JobSent,
		db.TransitionFields{SentAt: &now}); err != nil {
		d.logger.Error("failed to mark job sent", "job_id", job.ID, "error", err.Error())
		return
	}

	d.metrics.RecordDelivery(ctx, channel, MetricSuccess)
	d.logger.Info("delivery succeeded",
		"job_id", job.ID,
		"channel", string(channel),
		"provider_message_id", providerMsgID,
	)
}

func (d *Dispatcher) markFailed(ctx context.Context, channel types.Channel, job *types.NotificationJob, attempt int, sendErr error) {
	if attempt < job.MaxAttempts {
		retryAt := time.Now().Add(d.backoff.Delay(attempt))
		if err := d.store.Transition(ctx, job.ID, types.JobInFlight, types.JobPending,
			db.TransitionFields{LastError: sendErr.Error(), ScheduledFor: &retryAt}); err != nil {
			d.logger.Error("failed to park job for retry", "job_id", job.ID, "error", err.Error())
			return
		}
		d.queue.Enqueue(channel, job.ID, retryAt)

		d.metrics.RecordDelivery(ctx, channel, MetricRetry)
		d.logger.Warn("delivery failed, will retry",
			"job_id", job.ID,
			"channel", string(channel),
			"attempt", attempt,
			"max_attempts", job.MaxAttempts,
			"retry_at", retryAt.Format(time.RFC3339),
			"error", sendErr.Error(),
		)
		return
	}

	if err := d.store.Transition(ctx, job.ID, types.JobInFlight, types.JobDead,
		db.TransitionFields{LastError: sendErr.Error()}); err != nil {
		d.logger.Error("failed to mark job dead", "job_id", job.ID, "error", err.Error())
		return
	}

	d.metrics.RecordDelivery(ctx, channel, MetricDead)
	d.logger.Error("delivery permanently failed",
		"job_id", job.ID,
		"channel", string(channel),
		"attempt", attempt,
		"error", sendErr.Error(),
	)
}
