package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"studiopulse/internal/types"
)

// PreferenceRepository reads the user schedule preference and contact
// projections. Both tables are owned by the account service; this side only
// ever queries them.
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListForUser returns every stored preference row for the user and
// notification type. Absence of a row for a channel means the caller should
// fall back to the channel default.
func (r *PreferenceRepository) ListForUser(ctx context.Context, userID string, nt types.NotificationType) ([]types.UserSchedulePreference, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, notification_type, channel, enabled, delivery_time, timezone
		 FROM user_schedule_preferences
		 WHERE user_id = $1 AND notification_type = $2`,
		userID,
		string(nt),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedule preferences", err)
	}
	defer rows.Close()

	var prefs []types.UserSchedulePreference
	for rows.Next() {
		var p types.UserSchedulePreference
		var ntRaw, chRaw string
		if err := rows.Scan(&p.UserID, &ntRaw, &chRaw, &p.Enabled, &p.Time, &p.Timezone); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan preference row", err)
		}
		p.Type = types.NotificationType(ntRaw)
		p.Channel = types.Channel(chRaw)
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating preference rows", err)
	}

	return prefs, nil
}

// ListUsersWithEnabledChannel returns the IDs of every user that has at
// least one enabled channel for the notification type. The daily summary
// trigger uses this as its fan-out source instead of scanning all users.
func (r *PreferenceRepository) ListUsersWithEnabledChannel(ctx context.Context, nt types.NotificationType) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT user_id
		 FROM user_schedule_preferences
		 WHERE notification_type = $1 AND enabled = TRUE
		 ORDER BY user_id`,
		string(nt),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribed users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating user ids", err)
	}

	return ids, nil
}

// GetContact returns the delivery addresses for a user, or a not-found
// error when the user has no contact row at all.
func (r *PreferenceRepository) GetContact(ctx context.Context, userID string) (*types.UserContact, error) {
	row := r.db.QueryRow(ctx,
		`SELECT user_id, display_name, email, phone, push_subscription
		 FROM user_contacts
		 WHERE user_id = $1`,
		userID,
	)

	var (
		contact  types.UserContact
		email    *string
		phone    *string
		pushSub  []byte
		dispName *string
	)
	err := row.Scan(&contact.UserID, &dispName, &email, &phone, &pushSub)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.NewAppError(types.ErrCodeNotFoundContact, "no contact record for user", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get user contact", err)
	}

	if dispName != nil {
		contact.DisplayName = *dispName
	}
	if email != nil {
		contact.Email = *email
	}
	if phone != nil {
		contact.Phone = *phone
	}
	if len(pushSub) > 0 {
		contact.PushSubscription = string(pushSub)
	}

	return &contact, nil
}
