package external

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"studiopulse/internal/config"
	"studiopulse/internal/types"
)

// TextGenClient implements TextGenerator against the studio's internal
// text-generation service. It is strictly best-effort: every failure maps to
// generation_unavailable so callers can fall back to templated rendering
// without inspecting the cause.
type TextGenClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
}

var _ TextGenerator = (*TextGenClient)(nil)

// NewTextGenClient creates a text-generation client. Unlike delivery
// transports this one keeps client-level retries, failures here cost
// nothing but a blander summary.
func NewTextGenClient(httpClient *http.Client, cfg config.TextGenConfig, opts ...BaseClientOption) *TextGenClient {
	return &TextGenClient{
		base:    NewBaseClient(httpClient, "textgen", DefaultRetryPolicy(), "studiopulse-notifier/1.0", opts...),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate returns generated text for the prompt, or a
// generation_unavailable AppError.
func (c *TextGenClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeGenerationUnavailable, "failed to encode generation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeGenerationUnavailable, "failed to build generation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeGenerationUnavailable, "text generation service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.NewAppError(types.ErrCodeGenerationUnavailable,
			"text generation service returned an error status", nil)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", types.NewAppError(types.ErrCodeGenerationUnavailable, "unreadable generation response", err)
	}
	return body.Text, nil
}
