package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/sprint"
)

// HTTP calls a JSON completion endpoint. The request and response shapes
// follow the common chat-completion convention so the same provider entry
// works against most hosted model gateways.
type HTTP struct {
	name     string
	model    string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP builds an HTTP runner. The API key is read from the environment
// variable named in the config at construction time, not per call.
func NewHTTP(cfg config.ProviderConfig) (*HTTP, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("provider %s: endpoint is required", cfg.Name)
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider %s: environment variable %s is not set", cfg.Name, cfg.APIKeyEnv)
		}
	}
	return &HTTP{
		name:     cfg.Name,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		apiKey:   key,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (h *HTTP) Name() string  { return h.name }
func (h *HTTP) Model() string { return h.model }

type httpRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []httpMessage `json:"messages"`
}

type httpMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type httpResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message httpMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Run posts the prompt and returns the first choice's content.
func (h *HTTP) Run(ctx context.Context, in Input) (*Output, error) {
	body, err := json.Marshal(httpRequest{
		Model:    h.model,
		Messages: []httpMessage{{Role: "user", Content: in.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", h.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed httpResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider response has no choices")
	}

	return &Output{
		Text: parsed.Choices[0].Message.Content,
		Metrics: sprint.Metrics{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
		TraceID: parsed.ID,
	}, nil
}
