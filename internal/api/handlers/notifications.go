// Package handlers contains the HTTP handler implementations for the
// StudioPulse API.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"studiopulse/internal/core"
	notify "studiopulse/internal/notify/core"
	"studiopulse/internal/types"
)

// NotificationServiceInterface defines the service contract for the
// notification handler. Matches the notify.Service method set but is
// declared locally so tests inject fakes without the real pipeline.
type NotificationServiceInterface interface {
	Queue(ctx context.Context, req notify.QueueRequest) ([]*types.NotificationJob, error)
	Cancel(ctx context.Context, jobID string) error
	History(ctx context.Context, filter types.JobFilter) ([]*types.NotificationJob, types.PageInfo, error)
	Statistics(ctx context.Context, from, to time.Time) ([]types.StatisticsBucket, error)
}

// NotificationHandler maps HTTP requests to the notification service.
type NotificationHandler struct {
	service   NotificationServiceInterface
	validator *core.Validator
	logger    types.Logger
}

// NewNotificationHandler creates the handler with its dependencies.
func NewNotificationHandler(svc NotificationServiceInterface, val *core.Validator, logger types.Logger) *NotificationHandler {
	if logger == nil {
		logger = types.NopLogger()
	}
	return &NotificationHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the notification endpoints onto the mux.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.HandleQueue)
		r.Get("/", h.HandleHistory)
		r.Get("/stats", h.HandleStatistics)
		r.Delete("/{id}", h.HandleCancel)
	})
}

// queueResponse is the body returned by HandleQueue. One request can fan
// out into several jobs when no explicit channel is given.
type queueResponse struct {
	Jobs []*types.NotificationJob `json:"jobs"`
}

// HandleQueue handles POST /v1/notifications.
//
// The request either names an explicit channel and recipient, or omits the
// channel to fan out across the user's enabled channels. Validation
// failures return 400 and nothing is persisted; a queued job's later
// delivery outcome is only observable through the history endpoint.
func (h *NotificationHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	var req notify.QueueRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	jobs, err := h.service.Queue(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if jobs == nil {
		jobs = []*types.NotificationJob{}
	}
	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: queueResponse{Jobs: jobs}})
}

// HandleCancel handles DELETE /v1/notifications/{id}.
//
// Only pending jobs can be cancelled. A job already claimed by a worker
// returns 409; the delivery attempt in flight runs to completion.
func (h *NotificationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationField,
			"notification job ID is required",
			nil,
		))
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"id":     id,
		"status": string(types.JobCancelled),
	}})
}

// HandleHistory handles GET /v1/notifications.
//
// Query parameters: user_id, type (repeatable), channel (repeatable),
// status (repeatable), cursor, limit (1-100, default 20).
func (h *NotificationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	jobs, page, err := h.service.History(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if jobs == nil {
		jobs = []*types.NotificationJob{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: jobs, Page: &page})
}

// HandleStatistics handles GET /v1/notifications/stats.
//
// Query parameters: from, to (RFC3339). Defaults to the trailing 7 days.
func (h *NotificationHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationField,
				"from must be an RFC3339 timestamp",
				err,
			))
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationField,
				"to must be an RFC3339 timestamp",
				err,
			))
			return
		}
		to = parsed
	}
	if !to.After(from) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationField,
			"to must be after from",
			nil,
		))
		return
	}

	buckets, err := h.service.Statistics(r.Context(), from, to)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if buckets == nil {
		buckets = []types.StatisticsBucket{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: buckets})
}

// parseHistoryFilter builds a JobFilter from history query parameters,
// rejecting unknown enum values instead of silently returning nothing.
func parseHistoryFilter(r *http.Request) (types.JobFilter, error) {
	q := r.URL.Query()
	filter := types.JobFilter{
		UserID: q.Get("user_id"),
		Cursor: q.Get("cursor"),
		Limit:  20,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 100 {
			return types.JobFilter{}, types.NewAppError(
				types.ErrCodeValidationField,
				"limit must be a number between 1 and 100",
				nil,
			)
		}
		filter.Limit = parsed
	}

	for _, v := range q["type"] {
		nt := types.NotificationType(v)
		if !types.ValidNotificationType(nt) {
			return types.JobFilter{}, types.NewAppError(
				types.ErrCodeInvalidJobType,
				"unknown notification type: "+v,
				nil,
			)
		}
		filter.Types = append(filter.Types, nt)
	}

	for _, v := range q["channel"] {
		ch := types.Channel(v)
		if !types.ValidChannel(ch) {
			return types.JobFilter{}, types.NewAppError(
				types.ErrCodeInvalidJobChannel,
				"unknown channel: "+v,
				nil,
			)
		}
		filter.Channels = append(filter.Channels, ch)
	}

	for _, v := range q["status"] {
		st := types.JobStatus(v)
		if !validStatus(st) {
			return types.JobFilter{}, types.NewAppError(
				types.ErrCodeValidationField,
				"unknown job status: "+v,
				nil,
			)
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	return filter, nil
}

func validStatus(s types.JobStatus) bool {
	switch s {
	case types.JobPending, types.JobInFlight, types.JobSent, types.JobDead, types.JobCancelled:
		return true
	default:
		return false
	}
}
