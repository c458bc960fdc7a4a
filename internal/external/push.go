package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"studiopulse/internal/config"
	"studiopulse/internal/types"
)

// pushTTLSeconds bounds how long the push service holds an undelivered
// notification for an offline device.
const pushTTLSeconds = 86400

// WebPushProvider implements PushProvider using the Web Push protocol with
// VAPID authentication. The recipient of a push job is the user's serialized
// subscription document, captured at job creation time.
type WebPushProvider struct {
	publicKey  string
	privateKey types.SecretString
	subscriber string
	httpClient *http.Client
}

var _ PushProvider = (*WebPushProvider)(nil)

// NewWebPushProvider creates a web push provider from VAPID configuration.
func NewWebPushProvider(httpClient *http.Client, cfg config.PushConfig) *WebPushProvider {
	return &WebPushProvider{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
		httpClient: httpClient,
	}
}

// subscription mirrors the browser's PushSubscription JSON shape.
type subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SendPush delivers one notification to the subscription's push service.
//
// Status mapping: 404/410 mean the subscription expired and the address is
// permanently bad (transport_rejected); other 4xx/5xx are retryable
// (transport_unavailable).
func (p *WebPushProvider) SendPush(ctx context.Context, subscriptionJSON string, payload PushPayload) error {
	var sub subscription
	if err := json.Unmarshal([]byte(subscriptionJSON), &sub); err != nil || sub.Endpoint == "" {
		return types.NewAppError(types.ErrCodeTransportRejected,
			"push recipient is not a valid subscription document", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      p.httpClient,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey.Unmask(),
		Subscriber:      p.subscriber,
		TTL:             pushTTLSeconds,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeTransportUnavailable, "push service request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return types.NewAppError(types.ErrCodeTransportRejected,
			"push subscription expired", nil)
	default:
		return types.NewAppError(types.ErrCodeTransportUnavailable,
			fmt.Sprintf("push service returned %d", resp.StatusCode), nil)
	}
}
