// Package prefs resolves which channels a notification should go out on for
// a given user and notification type, combining the stored schedule
// preferences with the user's contact record.
package prefs

import (
	"context"
	"errors"

	"studiopulse/internal/types"
)

// PreferenceStore is the read side of the preference tables the resolver
// needs. Satisfied by db.PreferenceRepository.
type PreferenceStore interface {
	ListForUser(ctx context.Context, userID string, nt types.NotificationType) ([]types.UserSchedulePreference, error)
	GetContact(ctx context.Context, userID string) (*types.UserContact, error)
}

// Resolver answers "which channels, at what local time" for one user and
// notification type. A channel is resolved only when the user has explicitly
// enabled it and has an address for it; everything else is silently skipped.
// An empty result is a valid answer, not an error.
type Resolver struct {
	store  PreferenceStore
	logger types.Logger
}

// NewResolver creates a preference resolver.
func NewResolver(store PreferenceStore, logger types.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Delivery is one resolved delivery target: an enabled channel, the address
// to send to, and the user's schedule hint for recurring notifications.
type Delivery struct {
	Preference types.ChannelPreference
	Recipient  string
}

// Resolve returns the enabled channel preferences for the user and type.
// Missing preference rows mean disabled.
func (r *Resolver) Resolve(ctx context.Context, userID string, nt types.NotificationType) ([]types.ChannelPreference, error) {
	rows, err := r.store.ListForUser(ctx, userID, nt)
	if err != nil {
		return nil, err
	}

	var out []types.ChannelPreference
	for _, row := range rows {
		if !row.Enabled || !types.ValidChannel(row.Channel) {
			continue
		}
		out = append(out, types.ChannelPreference{
			Channel:  row.Channel,
			Time:     row.Time,
			Timezone: row.Timezone,
		})
	}
	return out, nil
}

// ResolveDeliveries combines Resolve with the user's contact record,
// dropping channels the user has no address for. A missing contact record
// disables every channel.
func (r *Resolver) ResolveDeliveries(ctx context.Context, userID string, nt types.NotificationType) ([]Delivery, error) {
	prefs, err := r.Resolve(ctx, userID, nt)
	if err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return nil, nil
	}

	contact, err := r.store.GetContact(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundContact {
			r.logger.Warn("user has enabled channels but no contact record",
				"user_id", userID,
				"notification_type", string(nt),
			)
			return nil, nil
		}
		return nil, err
	}

	var out []Delivery
	for _, pref := range prefs {
		recipient, ok := RecipientFor(contact, pref.Channel)
		if !ok {
			continue
		}
		out = append(out, Delivery{Preference: pref, Recipient: recipient})
	}
	return out, nil
}

// RecipientFor returns the contact address for a channel, and whether one
// exists.
func RecipientFor(contact *types.UserContact, channel types.Channel) (string, bool) {
	if contact == nil {
		return "", false
	}
	switch channel {
	case types.ChannelEmail:
		return contact.Email, contact.Email != ""
	case types.ChannelSMS:
		return contact.Phone, contact.Phone != ""
	case types.ChannelPush:
		return contact.PushSubscription, contact.PushSubscription != ""
	}
	return "", false
}
