package external

import (
	"context"
)

// EmailProvider sends one email and returns the provider's message ID.
type EmailProvider interface {
	SendEmail(ctx context.Context, input SendEmailInput) (string, error)
}

// SendEmailInput carries pre-rendered email content. No server-side
// templates.
type SendEmailInput struct {
	To       string
	Subject  string
	BodyText string
}

// SMSProvider sends one text message and returns the gateway's message ID.
type SMSProvider interface {
	SendSMS(ctx context.Context, to, message string) (string, error)
}

// PushProvider sends one web push notification to a serialized subscription.
type PushProvider interface {
	SendPush(ctx context.Context, subscriptionJSON string, payload PushPayload) error
}

// PushPayload is the JSON document delivered to the push service.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// TextGenerator produces natural-language text from a prompt. Best-effort:
// callers must tolerate GenerationUnavailable errors.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
