package external

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studiopulse/internal/types"
)

// Stub providers let the service boot in local mode without real gateway
// credentials. They log every call and return predictable values.

// StubEmailProvider logs email sends and fabricates a message ID.
type StubEmailProvider struct {
	logger types.Logger
}

var _ EmailProvider = (*StubEmailProvider)(nil)

// NewStubEmailProvider creates a StubEmailProvider.
func NewStubEmailProvider(logger types.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) SendEmail(ctx context.Context, input SendEmailInput) (string, error) {
	s.logger.Info("stub: SendEmail called",
		"to", input.To,
		"subject", input.Subject,
	)
	return fmt.Sprintf("msg_stub_%s", uuid.New().String()), nil
}

// StubSMSProvider logs sms sends and fabricates a message ID.
type StubSMSProvider struct {
	logger types.Logger
}

var _ SMSProvider = (*StubSMSProvider)(nil)

// NewStubSMSProvider creates a StubSMSProvider.
func NewStubSMSProvider(logger types.Logger) *StubSMSProvider {
	return &StubSMSProvider{logger: logger}
}

func (s *StubSMSProvider) SendSMS(ctx context.Context, to, message string) (string, error) {
	s.logger.Info("stub: SendSMS called",
		"to", to,
		"message_len", len(message),
	)
	return fmt.Sprintf("sms_stub_%s", uuid.New().String()), nil
}

// StubPushProvider logs push sends and always succeeds.
type StubPushProvider struct {
	logger types.Logger
}

var _ PushProvider = (*StubPushProvider)(nil)

// NewStubPushProvider creates a StubPushProvider.
func NewStubPushProvider(logger types.Logger) *StubPushProvider {
	return &StubPushProvider{logger: logger}
}

func (s *StubPushProvider) SendPush(ctx context.Context, subscriptionJSON string, payload PushPayload) error {
	s.logger.Info("stub: SendPush called",
		"title", payload.Title,
		"subscription_len", len(subscriptionJSON),
	)
	return nil
}

// StubTextGenerator returns an empty string, which sends callers down the
// templated fallback path.
type StubTextGenerator struct {
	logger types.Logger
}

var _ TextGenerator = (*StubTextGenerator)(nil)

// NewStubTextGenerator creates a StubTextGenerator.
func NewStubTextGenerator(logger types.Logger) *StubTextGenerator {
	return &StubTextGenerator{logger: logger}
}

func (s *StubTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.logger.Info("stub: Generate called", "prompt_len", len(prompt))
	return "", types.NewAppError(types.ErrCodeGenerationUnavailable, "text generation disabled in local mode", nil)
}
