package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studiopulse/internal/types"
)

// JobRepository provides data access for the notification_jobs table. It is
// the durable side of the job store: creation, the compare-and-set status
// transition that all dispatcher concurrency safety hangs on, the due-scan
// feeding the delivery queue, and the read-only history/statistics
// projections.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository backed by the given database
// connection (pool or transaction).
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// TransitionFields carries the optional columns written alongside a status
// transition. Zero values leave the column untouched.
type TransitionFields struct {
	LastError string
	SentAt    *time.Time

	// ScheduledFor moves the job's due time, used on the retry transition so
	// the backoff delay is durable and the queue stays re-derivable.
	ScheduledFor *time.Time
}

// Create validates the spec and inserts a new job in 'pending'. The job ID
// is generated here (UUID) and doubles as the idempotency key for status
// updates. Validation failures are returned synchronously as invalid_job_*
// AppErrors and never reach the table.
func (r *JobRepository) Create(ctx context.Context, spec types.JobSpec) (*types.NotificationJob, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	maxAttempts := spec.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = types.DefaultMaxAttempts
	}
	scheduledFor := spec.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = time.Now().UTC()
	}

	job := &types.NotificationJob{
		ID:           uuid.New().String(),
		UserID:       spec.UserID,
		Type:         spec.Type,
		Channel:      spec.Channel,
		Recipient:    spec.Recipient,
		Subject:      spec.Subject,
		Content:      spec.Content,
		Metadata:     spec.Metadata,
		ScheduledFor: scheduledFor,
		Status:       types.JobPending,
		MaxAttempts:  maxAttempts,
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO notification_jobs
		 (id, user_id, notification_type, channel, recipient, subject, content,
		  metadata, scheduled_for, status, attempts, max_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)
		 RETURNING created_at`,
		job.ID,
		job.UserID,
		string(job.Type),
		string(job.Channel),
		job.Recipient,
		nilIfEmpty(job.Subject),
		job.Content,
		metadataJSON(job.Metadata),
		job.ScheduledFor,
		string(job.Status),
		job.MaxAttempts,
	)
	if err := row.Scan(&job.CreatedAt); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create notification job", err)
	}

	return job, nil
}

// Get retrieves a single job by ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*types.NotificationJob, error) {
	row := r.db.QueryRow(ctx, selectJobColumns+` WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.NewAppError(types.ErrCodeNotFoundJob, "notification job not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification job", err)
	}
	return job, nil
}

// Transition performs the compare-and-set status update that guards against
// two workers processing the same job concurrently. The UPDATE only matches
// when the current status equals from; zero rows affected means another
// worker (or a cancellation) got there first, reported as StaleTransition.
//
// sent_at is written only on the transition to 'sent', preserving the
// invariant that sent_at is set iff status = sent.
func (r *JobRepository) Transition(ctx context.Context, id string, from, to types.JobStatus, fields TransitionFields) error {
	var sentAt any
	if to == types.JobSent {
		if fields.SentAt != nil {
			sentAt = *fields.SentAt
		} else {
			sentAt = time.Now().UTC()
		}
	}

	var scheduledFor any
	if fields.ScheduledFor != nil {
		scheduledFor = *fields.ScheduledFor
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE notification_jobs SET
			status = $1,
			last_error = COALESCE($2, last_error),
			sent_at = COALESCE($3, sent_at),
			scheduled_for = COALESCE($4, scheduled_for)
		 WHERE id = $5 AND status = $6`,
		string(to),
		nilIfEmpty(fields.LastError),
		sentAt,
		scheduledFor,
		id,
		string(from),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to transition job status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(
			types.ErrCodeStaleTransition,
			fmt.Sprintf("job %s is not in status %s", id, from),
			nil,
		)
	}
	return nil
}

// IncrementAttempt atomically increments the attempt counter and returns the
// new count. The chk_attempt_budget constraint backs the attempts <=
// max_attempts invariant at the storage layer as well.
func (r *JobRepository) IncrementAttempt(ctx context.Context, id string) (int, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE notification_jobs
		 SET attempts = attempts + 1
		 WHERE id = $1
		 RETURNING attempts`,
		id,
	)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, types.NewAppError(types.ErrCodeNotFoundJob, "notification job not found", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment attempt count", err)
	}
	return attempts, nil
}

// ListDue returns pending jobs for the channel whose scheduled_for has
// passed, oldest-due first so bursts of new jobs cannot starve older ones.
// Backed by the idx_jobs_due partial index.
func (r *JobRepository) ListDue(ctx context.Context, channel types.Channel, now time.Time, limit int) ([]*types.NotificationJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		selectJobColumns+`
		 WHERE status = 'pending' AND channel = $1 AND scheduled_for <= $2
		 ORDER BY scheduled_for ASC
		 LIMIT $3`,
		string(channel),
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due jobs", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// FindActiveByDedupKey returns jobs carrying the given dedup key in their
// metadata that have not reached 'dead'. The scheduler triggers consult this
// before creating a job for a logical event, making re-runs idempotent.
func (r *JobRepository) FindActiveByDedupKey(ctx context.Context, key string) ([]*types.NotificationJob, error) {
	rows, err := r.db.Query(ctx,
		selectJobColumns+`
		 WHERE metadata ->> $1 = $2 AND status <> 'dead'`,
		types.MetadataDedupKey,
		key,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query dedup key", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListHistory retrieves the job audit ledger with filtering, newest first.
// Pagination is cursor-based over created_at using the limit+1 strategy.
func (r *JobRepository) ListHistory(ctx context.Context, filter types.JobFilter) ([]*types.NotificationJob, types.PageInfo, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var conditions []string
	var args []any
	argIdx := 1

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filter.UserID)
		argIdx++
	}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, string(t))
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("notification_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(filter.Channels) > 0 {
		placeholders := make([]string, len(filter.Channels))
		for i, c := range filter.Channels {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, string(c))
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("channel IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, string(s))
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.Cursor != "" {
		cursorTime, err := time.Parse(time.RFC3339Nano, filter.Cursor)
		if err != nil {
			return nil, types.PageInfo{}, types.NewAppError(
				types.ErrCodeValidationCursor,
				"invalid cursor format; expected RFC3339 timestamp",
				err,
			)
		}
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, cursorTime)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`%s %s ORDER BY created_at DESC LIMIT $%d`,
		selectJobColumns,
		whereClause,
		argIdx,
	)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list job history", err)
	}
	defer rows.Close()

	results, err := collectJobs(rows)
	if err != nil {
		return nil, types.PageInfo{}, err
	}

	pageInfo := types.PageInfo{}
	if len(results) > limit {
		pageInfo.HasMore = true
		pageInfo.NextCursor = results[limit-1].CreatedAt.Format(time.RFC3339Nano)
		results = results[:limit]
	}

	return results, pageInfo, nil
}

// Statistics returns job counts grouped by type, channel, and status for
// jobs created inside [from, to). This is the operational dashboard query;
// a dead bucket here is how exhausted jobs surface.
func (r *JobRepository) Statistics(ctx context.Context, from, to time.Time) ([]types.StatisticsBucket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT notification_type, channel, status, COUNT(*)
		 FROM notification_jobs
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY notification_type, channel, status
		 ORDER BY notification_type, channel, status`,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query statistics", err)
	}
	defer rows.Close()

	var buckets []types.StatisticsBucket
	for rows.Next() {
		var b types.StatisticsBucket
		var nt, ch, st string
		if err := rows.Scan(&nt, &ch, &st, &b.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan statistics row", err)
		}
		b.Type = types.NotificationType(nt)
		b.Channel = types.Channel(ch)
		b.Status = types.JobStatus(st)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating statistics rows", err)
	}

	return buckets, nil
}

// validateSpec enforces the synchronous creation rules: recipient and
// content are always required, channel and type must be known, and email
// requires a subject.
func validateSpec(spec types.JobSpec) error {
	if !types.ValidNotificationType(spec.Type) {
		return types.NewAppError(types.ErrCodeInvalidJobType,
			fmt.Sprintf("unknown notification type %q", spec.Type), nil)
	}
	if !types.ValidChannel(spec.Channel) {
		return types.NewAppError(types.ErrCodeInvalidJobChannel,
			fmt.Sprintf("unknown channel %q", spec.Channel), nil)
	}
	if strings.TrimSpace(spec.Recipient) == "" {
		return types.NewAppError(types.ErrCodeInvalidJobRecipient, "recipient is required", nil)
	}
	if strings.TrimSpace(spec.Content) == "" {
		return types.NewAppError(types.ErrCodeInvalidJobContent, "content is required", nil)
	}
	if spec.Channel == types.ChannelEmail && strings.TrimSpace(spec.Subject) == "" {
		return types.NewAppError(types.ErrCodeInvalidJobSubject, "subject is required for email jobs", nil)
	}
	return nil
}

// selectJobColumns is the shared column list for job scans. Keep in sync
// with scanJob.
const selectJobColumns = `SELECT id, user_id, notification_type, channel, recipient,
	subject, content, metadata, scheduled_for, status, attempts, max_attempts,
	last_error, sent_at, created_at FROM notification_jobs`

// rowScanner is the subset of pgx.Row/pgx.Rows needed by scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans a single notification_jobs row. Handles nullable columns
// using pointer types.
func scanJob(row rowScanner) (*types.NotificationJob, error) {
	var (
		job       types.NotificationJob
		nt, ch    string
		subject   *string
		metadata  []byte
		lastError *string
		sentAt    *time.Time
	)

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&nt,
		&ch,
		&job.Recipient,
		&subject,
		&job.Content,
		&metadata,
		&job.ScheduledFor,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&lastError,
		&sentAt,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = types.NotificationType(nt)
	job.Channel = types.Channel(ch)
	if subject != nil {
		job.Subject = *subject
	}
	if lastError != nil {
		job.LastError = *lastError
	}
	job.SentAt = sentAt
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &job.Metadata)
	}

	return &job, nil
}

// collectJobs drains a pgx.Rows result set into job structs.
func collectJobs(rows pgx.Rows) ([]*types.NotificationJob, error) {
	var results []*types.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan job row", err)
		}
		results = append(results, job)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating job rows", err)
	}
	return results, nil
}

// metadataJSON serializes the metadata map for the JSONB column.
// Returns an empty JSON object when no metadata is set.
func metadataJSON(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// nilIfEmpty converts an empty string to nil so the column stays NULL.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
