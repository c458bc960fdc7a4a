package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/types"
)

type fakeResolver struct {
	deliveries []prefs.Delivery
	err        error
}

func (f *fakeResolver) ResolveDeliveries(_ context.Context, _ string, _ types.NotificationType) ([]prefs.Delivery, error) {
	return f.deliveries, f.err
}

type recordingEnqueuer struct {
	mu      sync.Mutex
	tickets []struct {
		channel types.Channel
		jobID   string
		readyAt time.Time
	}
}

func (e *recordingEnqueuer) Enqueue(channel types.Channel, jobID string, readyAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickets = append(e.tickets, struct {
		channel types.Channel
		jobID   string
		readyAt time.Time
	}{channel, jobID, readyAt})
}

func delivery(ch types.Channel, recipient string) prefs.Delivery {
	return prefs.Delivery{
		Preference: types.ChannelPreference{Channel: ch, Time: "08:00", Timezone: "UTC"},
		Recipient:  recipient,
	}
}

func TestService_Queue_FansOutAcrossChannels(t *testing.T) {
	store := newMemStore()
	resolver := &fakeResolver{deliveries: []prefs.Delivery{
		delivery(types.ChannelEmail, "trainer@example.com"),
		delivery(types.ChannelPush, `{"endpoint":"https://push.example.com/sub"}`),
	}}
	enq := &recordingEnqueuer{}
	svc := NewService(store, resolver, enq, types.NopLogger())

	jobs, err := svc.Queue(context.Background(), QueueRequest{
		UserID:  "user_1",
		Type:    types.NotificationSessionSummary,
		Subject: "Session recap",
		Content: "Great work today",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, types.ChannelEmail, jobs[0].Channel)
	assert.Equal(t, "trainer@example.com", jobs[0].Recipient)
	assert.Equal(t, types.ChannelPush, jobs[1].Channel)
	assert.Equal(t, types.JobPending, jobs[0].Status)

	require.Len(t, enq.tickets, 2)
	assert.Equal(t, jobs[0].ID, enq.tickets[0].jobID)
	assert.Equal(t, types.ChannelEmail, enq.tickets[0].channel)
}

func TestService_Queue_ExplicitChannel(t *testing.T) {
	store := newMemStore()
	// resolver must not be consulted for explicit-channel requests
	resolver := &fakeResolver{err: errors.New("should not be called")}
	enq := &recordingEnqueuer{}
	svc := NewService(store, resolver, enq, types.NopLogger())

	jobs, err := svc.Queue(context.Background(), QueueRequest{
		UserID:    "user_1",
		Type:      types.NotificationPaymentReceipt,
		Channel:   types.ChannelSMS,
		Recipient: "+15551234567",
		Content:   "Payment of $80 received",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.ChannelSMS, jobs[0].Channel)
	assert.Equal(t, "+15551234567", jobs[0].Recipient)
	require.Len(t, enq.tickets, 1)
}

func TestService_Queue_NoEnabledChannelsIsNoOp(t *testing.T) {
	store := newMemStore()
	enq := &recordingEnqueuer{}
	svc := NewService(store, &fakeResolver{}, enq, types.NopLogger())

	jobs, err := svc.Queue(context.Background(), QueueRequest{
		UserID:  "user_1",
		Type:    types.NotificationMarketing,
		Content: "New class on the schedule",
	})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, enq.tickets)
}

func TestService_Queue_ResolverError(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &fakeResolver{err: errors.New("connection refused")},
		&recordingEnqueuer{}, types.NopLogger())

	_, err := svc.Queue(context.Background(), QueueRequest{
		UserID:  "user_1",
		Type:    types.NotificationDailySummary,
		Content: "c",
	})
	require.Error(t, err)
}

func TestService_Queue_ScheduledForPropagates(t *testing.T) {
	store := newMemStore()
	enq := &recordingEnqueuer{}
	svc := NewService(store, &fakeResolver{deliveries: []prefs.Delivery{
		delivery(types.ChannelEmail, "trainer@example.com"),
	}}, enq, types.NopLogger())

	at := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	jobs, err := svc.Queue(context.Background(), QueueRequest{
		UserID:       "user_1",
		Type:         types.NotificationDailySummary,
		Subject:      "Your day ahead",
		Content:      "3 sessions booked",
		ScheduledFor: at,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, at, jobs[0].ScheduledFor)
	require.Len(t, enq.tickets, 1)
	assert.Equal(t, at, enq.tickets[0].readyAt)
}

func TestService_Cancel_PendingJob(t *testing.T) {
	store := newMemStore()
	job := pendingEmailJob(store, 3)
	svc := NewService(store, &fakeResolver{}, &recordingEnqueuer{}, types.NopLogger())

	require.NoError(t, svc.Cancel(context.Background(), job.ID))
	assert.Equal(t, types.JobCancelled, store.snapshot(job.ID).Status)
}

func TestService_Cancel_NotFound(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &fakeResolver{}, &recordingEnqueuer{}, types.NopLogger())

	err := svc.Cancel(context.Background(), "job_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundJob, appErr.Code)
}

func TestService_Cancel_NotPendingIsConflict(t *testing.T) {
	tests := []struct {
		name   string
		status types.JobStatus
	}{
		{name: "in flight", status: types.JobInFlight},
		{name: "sent", status: types.JobSent},
		{name: "dead", status: types.JobDead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			job := pendingEmailJob(store, 3)
			job.Status = tt.status
			store.put(job)

			svc := NewService(store, &fakeResolver{}, &recordingEnqueuer{}, types.NopLogger())
			err := svc.Cancel(context.Background(), job.ID)
			require.Error(t, err)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, types.ErrCodeConflictNotCancellable, appErr.Code)
			assert.Equal(t, tt.status, store.snapshot(job.ID).Status)
		})
	}
}
