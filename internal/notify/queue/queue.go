// Package queue provides the in-memory delivery queue feeding the dispatch
// workers. Each channel owns an independent min-heap of tickets ordered by
// ready time. The queue holds job IDs only; the job store remains the single
// durable source of truth, and the whole queue can be rebuilt from it via
// Recover after a restart.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"studiopulse/internal/types"
)

// Backoff holds the exponential delay parameters applied when a failed job
// is requeued: delay = min(Base * 2^(attempt-1), Cap).
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff is the standard delivery retry curve: 2s, 4s, 8s, ...
// capped at 60s.
var DefaultBackoff = Backoff{
	Base: 2 * time.Second,
	Cap:  60 * time.Second,
}

// Delay returns the backoff delay before retry number attempt (1-based,
// the count of attempts already made).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Cap || delay < 0 {
			return b.Cap
		}
	}
	if delay > b.Cap {
		return b.Cap
	}
	return delay
}

// ticket is one queued delivery: a job ID and the earliest instant a worker
// may pick it up.
type ticket struct {
	jobID   string
	readyAt time.Time
}

// ticketHeap is a min-heap of tickets ordered by readyAt.
type ticketHeap []ticket

func (h ticketHeap) Len() int            { return len(h) }
func (h ticketHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h ticketHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *ticketHeap) Push(x any)         { *h = append(*h, x.(ticket)) }
func (h *ticketHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// channelQueue is the per-channel heap plus its wakeup signal.
type channelQueue struct {
	mu      sync.Mutex
	tickets ticketHeap
	wake    chan struct{}
}

func newChannelQueue() *channelQueue {
	return &channelQueue{wake: make(chan struct{}, 1)}
}

func (q *channelQueue) push(t ticket) {
	q.mu.Lock()
	heap.Push(&q.tickets, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// take blocks until a ticket is ready or the context is cancelled. The pop
// happens under the queue mutex, so a ticket is handed to exactly one caller.
func (q *channelQueue) take(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.tickets) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-q.wake:
				continue
			}
		}

		now := time.Now()
		head := q.tickets[0]
		if !head.readyAt.After(now) {
			t := heap.Pop(&q.tickets).(ticket)
			q.mu.Unlock()
			return t.jobID, nil
		}
		wait := head.readyAt.Sub(now)
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		case <-q.wake:
			// an earlier ticket may have arrived; re-evaluate the head
			timer.Stop()
		}
	}
}

func (q *channelQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}

// JobSource is the read side of the job store the queue needs to rebuild
// itself. Satisfied by db.JobRepository.
type JobSource interface {
	ListDue(ctx context.Context, channel types.Channel, now time.Time, limit int) ([]*types.NotificationJob, error)
}

// DeliveryQueue multiplexes one delayed min-heap per channel. Enqueue and
// RequeueWithBackoff are non-blocking; Take blocks the calling worker until
// a ticket on its channel becomes ready.
type DeliveryQueue struct {
	channels map[types.Channel]*channelQueue
	backoff  Backoff
}

// New creates a DeliveryQueue with one sub-queue per supported channel.
func New(backoff Backoff) *DeliveryQueue {
	channels := make(map[types.Channel]*channelQueue, len(types.AllChannels))
	for _, ch := range types.AllChannels {
		channels[ch] = newChannelQueue()
	}
	return &DeliveryQueue{channels: channels, backoff: backoff}
}

// Enqueue schedules a job for pickup at readyAt. Unknown channels are
// dropped; the job store's creation validation makes that unreachable in
// practice.
func (q *DeliveryQueue) Enqueue(channel types.Channel, jobID string, readyAt time.Time) {
	cq, ok := q.channels[channel]
	if !ok {
		return
	}
	cq.push(ticket{jobID: jobID, readyAt: readyAt})
}

// RequeueWithBackoff re-inserts a failed job with the exponential delay for
// the given attempt count (the number of attempts already made).
func (q *DeliveryQueue) RequeueWithBackoff(channel types.Channel, jobID string, attempt int) {
	q.Enqueue(channel, jobID, time.Now().Add(q.backoff.Delay(attempt)))
}

// Take blocks until a ticket on the channel is ready, or until ctx is done.
// Each ticket is delivered to exactly one caller.
func (q *DeliveryQueue) Take(ctx context.Context, channel types.Channel) (string, error) {
	cq, ok := q.channels[channel]
	if !ok {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return cq.take(ctx)
}

// Size reports the number of queued tickets for a channel. Intended for
// logging and tests.
func (q *DeliveryQueue) Size(channel types.Channel) int {
	cq, ok := q.channels[channel]
	if !ok {
		return 0
	}
	return cq.size()
}

// Recover rebuilds the queue from the job store: every pending job with a
// scheduled time inside [now, now+horizon] is re-enqueued at its scheduled
// time. Jobs already due are enqueued for immediate pickup. Called once at
// startup; the dispatcher's periodic rescan picks up anything beyond the
// horizon later.
func (q *DeliveryQueue) Recover(ctx context.Context, src JobSource, horizon time.Duration, batch int) (int, error) {
	cutoff := time.Now().Add(horizon)
	total := 0
	for _, ch := range types.AllChannels {
		jobs, err := src.ListDue(ctx, ch, cutoff, batch)
		if err != nil {
			return total, err
		}
		for _, job := range jobs {
			q.Enqueue(ch, job.ID, job.ScheduledFor)
			total++
		}
	}
	return total, nil
}
