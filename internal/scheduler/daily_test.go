package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/types"
)

type fakeDirectory struct {
	users    []string
	contacts map[string]*types.UserContact
	listErr  error
}

func (f *fakeDirectory) ListUsersWithEnabledChannel(_ context.Context, _ types.NotificationType) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeDirectory) GetContact(_ context.Context, userID string) (*types.UserContact, error) {
	if c, ok := f.contacts[userID]; ok {
		return c, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundContact, "no contact record", nil)
}

type fakeAgenda struct {
	appointments []types.Appointment
	gotFrom      time.Time
	gotTo        time.Time
}

func (f *fakeAgenda) ListForTrainerBetween(_ context.Context, _ string, from, to time.Time) ([]types.Appointment, error) {
	f.gotFrom, f.gotTo = from, to
	return f.appointments, nil
}

type fakeComposer struct {
	content types.SummaryContent
	inputs  []types.SummaryInput
}

func (f *fakeComposer) Build(_ context.Context, input types.SummaryInput) types.SummaryContent {
	f.inputs = append(f.inputs, input)
	return f.content
}

func newDailyTrigger(dir *fakeDirectory, res *fakeResolver, agenda *fakeAgenda, comp *fakeComposer, ledger *fakeLedger, enq *recordingEnqueuer) *DailySummaryTrigger {
	return NewDailySummaryTrigger(dir, res, agenda, comp, ledger, enq, types.NopLogger())
}

func TestDailySummaryTrigger_CreatesJobPerEnabledChannel(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {
			delivery(types.ChannelEmail, "maya@studio.test", "08:00", "UTC"),
			delivery(types.ChannelPush, `{"endpoint":"https://push.test/p1"}`, "08:00", "UTC"),
		},
	}}
	agenda := &fakeAgenda{appointments: []types.Appointment{
		{ID: "apt_1", TrainerID: "trainer_1", Title: "Strength basics", StartsAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
	}}
	comp := &fakeComposer{content: types.SummaryContent{Subject: "Your day", Body: "One session today."}}
	ledger := &fakeLedger{}
	enq := &recordingEnqueuer{}

	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	created, err := newDailyTrigger(dir, res, agenda, comp, ledger, enq).Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, ledger.jobs, 2)

	wantRunAt := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	for _, job := range ledger.jobs {
		assert.Equal(t, "trainer_1", job.UserID)
		assert.Equal(t, types.NotificationDailySummary, job.Type)
		assert.Equal(t, "Your day", job.Subject)
		assert.Equal(t, "One session today.", job.Content)
		assert.Equal(t, "daily:trainer_1:2026-03-05", job.Metadata[types.MetadataDedupKey])
		assert.True(t, job.ScheduledFor.Equal(wantRunAt))
	}
	assert.Equal(t, types.ChannelEmail, ledger.jobs[0].Channel)
	assert.Equal(t, "maya@studio.test", ledger.jobs[0].Recipient)
	assert.Equal(t, types.ChannelPush, ledger.jobs[1].Channel)

	require.Len(t, enq.tickets, 2)
	assert.Equal(t, ledger.jobs[0].ID, enq.tickets[0].jobID)
	assert.True(t, enq.tickets[0].readyAt.Equal(wantRunAt))

	// Both channels share one local day, so the summary renders once.
	require.Len(t, comp.inputs, 1)
	assert.Equal(t, "Maya", comp.inputs[0].UserName)
	require.Len(t, comp.inputs[0].Appointments, 1)
	assert.Equal(t, "apt_1", comp.inputs[0].Appointments[0].ID)
}

func TestDailySummaryTrigger_SchedulesTomorrowWhenTimePassed(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {delivery(types.ChannelEmail, "maya@studio.test", "08:00", "UTC")},
	}}
	ledger := &fakeLedger{}
	enq := &recordingEnqueuer{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, enq)

	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	created, err := trig.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, ledger.jobs, 1)
	assert.True(t, ledger.jobs[0].ScheduledFor.Equal(time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "daily:trainer_1:2026-03-06", ledger.jobs[0].Metadata[types.MetadataDedupKey])
}

func TestDailySummaryTrigger_TimezoneAwareScheduling(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {delivery(types.ChannelEmail, "maya@studio.test", "07:00", "America/Toronto")},
	}}
	ledger := &fakeLedger{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, &recordingEnqueuer{})

	// 2026-01-15 05:00 UTC is 00:00 EST, so 07:00 local is still ahead.
	now := time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC)
	created, err := trig.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	// 07:00 EST is 12:00 UTC.
	assert.True(t, ledger.jobs[0].ScheduledFor.Equal(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "daily:trainer_1:2026-01-15", ledger.jobs[0].Metadata[types.MetadataDedupKey])
}

func TestDailySummaryTrigger_RerunSkipsExistingChannels(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {
			delivery(types.ChannelEmail, "maya@studio.test", "08:00", "UTC"),
			delivery(types.ChannelSMS, "+15550001111", "08:00", "UTC"),
		},
	}}
	ledger := &fakeLedger{}
	ledger.seed("trainer_1", types.ChannelEmail, "daily:trainer_1:2026-03-05")
	enq := &recordingEnqueuer{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, enq)

	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	created, err := trig.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, enq.tickets, 1)
	assert.Equal(t, types.ChannelSMS, enq.tickets[0].channel)
}

func TestDailySummaryTrigger_SecondRunIsNoOp(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {delivery(types.ChannelEmail, "maya@studio.test", "08:00", "UTC")},
	}}
	ledger := &fakeLedger{}
	comp := &fakeComposer{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, comp, ledger, &recordingEnqueuer{})

	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	first, err := trig.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := trig.Run(context.Background(), now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, ledger.jobs, 1)
	assert.Len(t, comp.inputs, 1)
}

func TestDailySummaryTrigger_OneUserFailingDoesNotBlockOthers(t *testing.T) {
	dir := &fakeDirectory{
		users: []string{"trainer_bad", "trainer_good"},
		contacts: map[string]*types.UserContact{
			"trainer_good": {UserID: "trainer_good", DisplayName: "Ade"},
		},
	}
	res := &fakeResolver{
		deliveries: map[string][]prefs.Delivery{
			"trainer_good": {delivery(types.ChannelEmail, "ade@studio.test", "08:00", "UTC")},
		},
		errs: map[string]error{"trainer_bad": errors.New("store offline")},
	}
	ledger := &fakeLedger{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, &recordingEnqueuer{})

	created, err := trig.Run(context.Background(), time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, ledger.jobs, 1)
	assert.Equal(t, "trainer_good", ledger.jobs[0].UserID)
}

func TestDailySummaryTrigger_InvalidTimezoneSkipsChannel(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {
			delivery(types.ChannelEmail, "maya@studio.test", "08:00", "Mars/Olympus"),
			delivery(types.ChannelSMS, "+15550001111", "08:00", "UTC"),
		},
	}}
	ledger := &fakeLedger{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, &recordingEnqueuer{})

	created, err := trig.Run(context.Background(), time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, ledger.jobs, 1)
	assert.Equal(t, types.ChannelSMS, ledger.jobs[0].Channel)
}

func TestDailySummaryTrigger_DefaultsWhenScheduleUnset(t *testing.T) {
	dir := &fakeDirectory{
		users:    []string{"trainer_1"},
		contacts: map[string]*types.UserContact{"trainer_1": {UserID: "trainer_1", DisplayName: "Maya"}},
	}
	res := &fakeResolver{deliveries: map[string][]prefs.Delivery{
		"trainer_1": {delivery(types.ChannelEmail, "maya@studio.test", "", "")},
	}}
	ledger := &fakeLedger{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, &recordingEnqueuer{})

	now := time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)
	created, err := trig.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.True(t, ledger.jobs[0].ScheduledFor.Equal(time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)))
}

func TestDailySummaryTrigger_NoDeliveriesCreatesNothing(t *testing.T) {
	dir := &fakeDirectory{users: []string{"trainer_1"}}
	res := &fakeResolver{}
	ledger := &fakeLedger{}
	trig := newDailyTrigger(dir, res, &fakeAgenda{}, &fakeComposer{}, ledger, &recordingEnqueuer{})

	created, err := trig.Run(context.Background(), time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, ledger.jobs)
}
