package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"studiopulse/internal/config"
	"studiopulse/internal/types"
)

// SMSGatewayClient implements SMSProvider against the studio's HTTP SMS
// gateway. All calls go through the BaseClient with retries disabled; a
// down gateway fails fast once the breaker opens.
type SMSGatewayClient struct {
	base       *BaseClient
	gatewayURL string
	apiKey     types.SecretString
	sender     string
}

var _ SMSProvider = (*SMSGatewayClient)(nil)

// NewSMSGatewayClient creates an SMS gateway client.
func NewSMSGatewayClient(httpClient *http.Client, cfg config.SMSConfig, opts ...BaseClientOption) *SMSGatewayClient {
	return &SMSGatewayClient{
		base:       NewBaseClient(httpClient, "sms-gateway", NoRetryPolicy(), "studiopulse-notifier/1.0", opts...),
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
	}
}

type smsSendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type smsSendResponse struct {
	MessageID string `json:"message_id"`
}

// SendSMS posts one message to the gateway and returns its message ID.
//
// Status mapping: 2xx → success, 400/422 → transport_rejected (bad number,
// not retryable at the gateway), everything else comes back mapped by the
// BaseClient.
func (c *SMSGatewayClient) SendSMS(ctx context.Context, to, message string) (string, error) {
	payload, err := json.Marshal(smsSendRequest{To: to, From: c.sender, Message: message})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode sms request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sms request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var body smsSendResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", types.NewAppError(types.ErrCodeTransportUnavailable,
				"sms gateway returned unreadable response", err)
		}
		return body.MessageID, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", types.NewAppError(types.ErrCodeTransportRejected,
			fmt.Sprintf("sms gateway rejected message with status %d", resp.StatusCode), nil)
	default:
		return "", types.NewAppError(types.ErrCodeTransportUnavailable,
			fmt.Sprintf("sms gateway returned unexpected status %d", resp.StatusCode), nil)
	}
}
