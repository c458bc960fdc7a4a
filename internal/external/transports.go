package external

import (
	"context"

	"studiopulse/internal/types"
)

// The transport wrappers adapt the channel providers to the dispatcher's
// Transport interface: one job in, one provider call out. They carry no
// retry or state logic of their own.

// EmailTransport delivers email jobs through an EmailProvider.
type EmailTransport struct {
	provider EmailProvider
}

// NewEmailTransport creates the email channel transport.
func NewEmailTransport(provider EmailProvider) *EmailTransport {
	return &EmailTransport{provider: provider}
}

func (t *EmailTransport) Channel() types.Channel { return types.ChannelEmail }

func (t *EmailTransport) Send(ctx context.Context, job *types.NotificationJob) (string, error) {
	return t.provider.SendEmail(ctx, SendEmailInput{
		To:       job.Recipient,
		Subject:  job.Subject,
		BodyText: job.Content,
	})
}

// SMSTransport delivers sms jobs through an SMSProvider.
type SMSTransport struct {
	provider SMSProvider
}

// NewSMSTransport creates the sms channel transport.
func NewSMSTransport(provider SMSProvider) *SMSTransport {
	return &SMSTransport{provider: provider}
}

func (t *SMSTransport) Channel() types.Channel { return types.ChannelSMS }

func (t *SMSTransport) Send(ctx context.Context, job *types.NotificationJob) (string, error) {
	return t.provider.SendSMS(ctx, job.Recipient, job.Content)
}

// PushTransport delivers push jobs through a PushProvider. The job recipient
// holds the serialized subscription; the push service reports no message ID.
type PushTransport struct {
	provider PushProvider
}

// NewPushTransport creates the push channel transport.
func NewPushTransport(provider PushProvider) *PushTransport {
	return &PushTransport{provider: provider}
}

func (t *PushTransport) Channel() types.Channel { return types.ChannelPush }

func (t *PushTransport) Send(ctx context.Context, job *types.NotificationJob) (string, error) {
	err := t.provider.SendPush(ctx, job.Recipient, PushPayload{
		Title: job.Subject,
		Body:  job.Content,
		Tag:   string(job.Type),
	})
	if err != nil {
		return "", err
	}
	return "", nil
}
