package external

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"studiopulse/internal/config"
	"studiopulse/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESProvider. Extracted
// for testability.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider implements EmailProvider using AWS SES v2. Authentication is
// IAM role based; the breaker-wrapped BaseClient is not needed because the
// AWS SDK carries its own transport handling, and SDK retries are disabled
// at construction so the dispatcher's attempt accounting stays exact.
type SESProvider struct {
	api           SESAPI
	fromAddress   string
	fromName      string
	configSetName string
	logger        types.Logger
}

var _ EmailProvider = (*SESProvider)(nil)

// NewSESProvider creates an SESProvider from an AWS config.
func NewSESProvider(awsCfg aws.Config, cfg config.EmailConfig, logger types.Logger) *SESProvider {
	api := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		o.RetryMaxAttempts = 1
	})
	return NewSESProviderWithAPI(api, cfg, logger)
}

// NewSESProviderWithAPI creates an SESProvider with a pre-built SESAPI.
// Useful for tests.
func NewSESProviderWithAPI(api SESAPI, cfg config.EmailConfig, logger types.Logger) *SESProvider {
	return &SESProvider{
		api:           api,
		fromAddress:   cfg.FromAddress,
		fromName:      cfg.FromName,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// SendEmail transmits one email with simple pre-rendered content.
//
// Error mapping:
//   - MessageRejected → transport_rejected
//   - TooManyRequestsException → transport_rate_limited
//   - SendingPausedException → transport_unavailable
//   - anything else → transport_unavailable
func (s *SESProvider) SendEmail(ctx context.Context, input SendEmailInput) (string, error) {
	fromAddr := s.fromAddress
	if s.fromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	emailInput := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddr),
		Destination: &sestypes.Destination{
			ToAddresses: []string{input.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(input.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{
						Data:    aws.String(input.BodyText),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
	if s.configSetName != "" {
		emailInput.ConfigurationSetName = aws.String(s.configSetName)
	}

	result, err := s.api.SendEmail(ctx, emailInput)
	if err != nil {
		return "", mapSESError(err)
	}

	msgID := ""
	if result.MessageId != nil {
		msgID = *result.MessageId
	}
	return msgID, nil
}

// mapSESError translates AWS SES errors into transport AppErrors.
func mapSESError(err error) error {
	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeTransportRejected,
			fmt.Sprintf("SES rejected message: %v", err), err)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(types.ErrCodeTransportRateLimited,
			fmt.Sprintf("SES rate limit exceeded: %v", err), err)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(types.ErrCodeTransportUnavailable,
			fmt.Sprintf("SES account sending paused: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeTransportUnavailable,
		fmt.Sprintf("SES error: %v", err), err)
}
