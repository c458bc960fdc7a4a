package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopulse/internal/core"
	notify "studiopulse/internal/notify/core"
	"studiopulse/internal/types"
)

type fakeService struct {
	queuedReq   *notify.QueueRequest
	queueJobs   []*types.NotificationJob
	queueErr    error
	cancelledID string
	cancelErr   error
	gotFilter   types.JobFilter
	historyJobs []*types.NotificationJob
	historyPage types.PageInfo
	historyErr  error
	statsFrom   time.Time
	statsTo     time.Time
	statsRows   []types.StatisticsBucket
	statsErr    error
}

func (f *fakeService) Queue(_ context.Context, req notify.QueueRequest) ([]*types.NotificationJob, error) {
	f.queuedReq = &req
	return f.queueJobs, f.queueErr
}

func (f *fakeService) Cancel(_ context.Context, jobID string) error {
	f.cancelledID = jobID
	return f.cancelErr
}

func (f *fakeService) History(_ context.Context, filter types.JobFilter) ([]*types.NotificationJob, types.PageInfo, error) {
	f.gotFilter = filter
	return f.historyJobs, f.historyPage, f.historyErr
}

func (f *fakeService) Statistics(_ context.Context, from, to time.Time) ([]types.StatisticsBucket, error) {
	f.statsFrom, f.statsTo = from, to
	return f.statsRows, f.statsErr
}

func newTestRouter(svc NotificationServiceInterface) http.Handler {
	h := NewNotificationHandler(svc, core.NewValidator(), types.NopLogger())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleQueue_Accepted(t *testing.T) {
	svc := &fakeService{queueJobs: []*types.NotificationJob{
		{ID: "job_1", UserID: "u1", Channel: types.ChannelEmail, Status: types.JobPending},
	}}
	router := newTestRouter(svc)

	body := `{"user_id":"u1","type":"appointment_reminder","channel":"email","recipient":"u1@studio.test","subject":"Hey","content":"See you soon"}`
	w := doRequest(t, router, http.MethodPost, "/notifications", body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, svc.queuedReq)
	assert.Equal(t, "u1", svc.queuedReq.UserID)
	assert.Equal(t, types.ChannelEmail, svc.queuedReq.Channel)
	assert.Contains(t, w.Body.String(), "job_1")
}

func TestHandleQueue_MissingRequiredFields(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	w := doRequest(t, router, http.MethodPost, "/notifications", `{"user_id":"u1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.queuedReq)

	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeValidationField), resp.Error.Code)
}

func TestHandleQueue_MalformedJSON(t *testing.T) {
	router := newTestRouter(&fakeService{})

	w := doRequest(t, router, http.MethodPost, "/notifications", `{"user_id":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeValidationJSON))
}

func TestHandleQueue_ServiceValidationError(t *testing.T) {
	svc := &fakeService{queueErr: types.NewAppError(types.ErrCodeInvalidJobRecipient, "email channel requires a recipient", nil)}
	router := newTestRouter(svc)

	body := `{"user_id":"u1","type":"marketing","channel":"email","content":"hello"}`
	w := doRequest(t, router, http.MethodPost, "/notifications", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeInvalidJobRecipient))
}

func TestHandleCancel(t *testing.T) {
	t.Run("pending job cancelled", func(t *testing.T) {
		svc := &fakeService{}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodDelete, "/notifications/job_1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "job_1", svc.cancelledID)
		assert.Contains(t, w.Body.String(), string(types.JobCancelled))
	})

	t.Run("unknown job returns 404", func(t *testing.T) {
		svc := &fakeService{cancelErr: types.NewAppError(types.ErrCodeNotFoundJob, "job not found", nil)}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodDelete, "/notifications/missing", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("in flight job returns 409", func(t *testing.T) {
		svc := &fakeService{cancelErr: types.NewAppError(types.ErrCodeConflictNotCancellable, "job is no longer pending", nil)}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodDelete, "/notifications/job_2", "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHandleHistory(t *testing.T) {
	t.Run("filters forwarded", func(t *testing.T) {
		svc := &fakeService{
			historyJobs: []*types.NotificationJob{{ID: "job_1"}},
			historyPage: types.PageInfo{NextCursor: "2026-03-05T10:00:00Z", HasMore: true},
		}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodGet,
			"/notifications?user_id=u1&type=daily_summary&channel=email&status=sent&limit=50&cursor=abc", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", svc.gotFilter.UserID)
		assert.Equal(t, []types.NotificationType{types.NotificationDailySummary}, svc.gotFilter.Types)
		assert.Equal(t, []types.Channel{types.ChannelEmail}, svc.gotFilter.Channels)
		assert.Equal(t, []types.JobStatus{types.JobSent}, svc.gotFilter.Statuses)
		assert.Equal(t, 50, svc.gotFilter.Limit)
		assert.Equal(t, "abc", svc.gotFilter.Cursor)

		var resp struct {
			Page types.PageInfo `json:"page"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Page.HasMore)
	})

	t.Run("default limit", func(t *testing.T) {
		svc := &fakeService{}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodGet, "/notifications", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 20, svc.gotFilter.Limit)
	})

	t.Run("limit out of range", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet, "/notifications?limit=500", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown channel rejected", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet, "/notifications?channel=fax", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), string(types.ErrCodeInvalidJobChannel))
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet, "/notifications?status=lost", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid cursor surfaces 400 from service", func(t *testing.T) {
		svc := &fakeService{historyErr: types.NewAppError(types.ErrCodeValidationCursor, "invalid cursor", nil)}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodGet, "/notifications?cursor=garbage", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet, "/notifications", "")

		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}

func TestHandleStatistics(t *testing.T) {
	t.Run("explicit range", func(t *testing.T) {
		svc := &fakeService{statsRows: []types.StatisticsBucket{
			{Type: types.NotificationDailySummary, Channel: types.ChannelEmail, Status: types.JobSent, Count: 12},
		}}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodGet,
			"/notifications/stats?from=2026-03-01T00:00:00Z&to=2026-03-08T00:00:00Z", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, svc.statsFrom.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, svc.statsTo.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))
		assert.Contains(t, w.Body.String(), `"count":12`)
	})

	t.Run("defaults to trailing week", func(t *testing.T) {
		svc := &fakeService{}
		router := newTestRouter(svc)

		w := doRequest(t, router, http.MethodGet, "/notifications/stats", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -7), svc.statsFrom, time.Minute)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet, "/notifications/stats?from=yesterday", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("inverted range", func(t *testing.T) {
		router := newTestRouter(&fakeService{})

		w := doRequest(t, router, http.MethodGet,
			"/notifications/stats?from=2026-03-08T00:00:00Z&to=2026-03-01T00:00:00Z", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
