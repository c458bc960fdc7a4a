package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"studiopulse/internal/types"
)

// AppointmentRepository reads the appointment projection used by the
// reminder and daily summary triggers.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new AppointmentRepository.
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListStartingBetween returns appointments whose start time falls in
// [from, to), ordered by start time. The reminder trigger scans this window
// once per lead time.
func (r *AppointmentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		selectAppointmentColumns+`
		 WHERE starts_at >= $1 AND starts_at < $2
		 ORDER BY starts_at ASC`,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list appointments in window", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// ListForTrainerBetween returns a trainer's appointments in [from, to),
// ordered by start time. This is the working-day view the daily summary is
// built from.
func (r *AppointmentRepository) ListForTrainerBetween(ctx context.Context, trainerID string, from, to time.Time) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		selectAppointmentColumns+`
		 WHERE trainer_id = $1 AND starts_at >= $2 AND starts_at < $3
		 ORDER BY starts_at ASC`,
		trainerID,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list trainer appointments", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

const selectAppointmentColumns = `SELECT id, trainer_id, client_id, title, location, starts_at, ends_at
	 FROM appointments`

func collectAppointments(rows pgx.Rows) ([]types.Appointment, error) {
	var results []types.Appointment
	for rows.Next() {
		var a types.Appointment
		var location *string
		if err := rows.Scan(&a.ID, &a.TrainerID, &a.ClientID, &a.Title, &location, &a.StartsAt, &a.EndsAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment row", err)
		}
		if location != nil {
			a.Location = *location
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating appointment rows", err)
	}
	return results, nil
}
