// Package openrouter implements the model catalog and chat completion
// providers on top of the OpenRouter HTTP API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PolyChat/internal/chat"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client talks to the OpenRouter API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	mu     sync.RWMutex
	apiKey string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new OpenRouter client.
func NewClient(apiKey string, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		tracer:     tracer,
		meter:      meter,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey replaces the credential used for subsequent calls.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// ListModels fetches the model catalog.
func (c *Client) ListModels(ctx context.Context) ([]chat.Model, error) {
	ctx, span := c.tracer.Start(ctx, "openrouter_list_models")
	defer span.End()

	apiKey := c.key()
	if apiKey == "" {
		return nil, &APIError{Kind: KindAuth, Message: "API key not set"}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorForStatus(resp.StatusCode, apiErrorDetail(body))
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger.Info("fetched model catalog", "count", len(modelsResp.Data))
	return modelsResp.Data, nil
}

// FreeModels filters the catalog down to free-tier models.
func FreeModels(models []chat.Model) []chat.Model {
	free := make([]chat.Model, 0, len(models))
	for _, m := range models {
		if m.Free() {
			free = append(free, m)
		}
	}
	return free
}

// SendMessage sends the conversation history to a model and returns its
// reply.
func (c *Client) SendMessage(ctx context.Context, modelID string, history []chat.Message) (chat.Message, error) {
	ctx, span := c.tracer.Start(ctx, "openrouter_chat_completion")
	defer span.End()

	start := time.Now()

	apiKey := c.key()
	if apiKey == "" {
		return chat.Message{}, &APIError{Kind: KindAuth, Message: "API key not set"}
	}
	if modelID == "" {
		return chat.Message{}, &APIError{Kind: KindBadRequest, Message: "Model ID not specified"}
	}

	reqMessages := make([]map[string]string, len(history))
	for i, msg := range history {
		reqMessages[i] = map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
	}

	reqBody := chatRequest{
		Model:       modelID,
		Messages:    reqMessages,
		Temperature: 0.7,
		MaxTokens:   1000,
		Stream:      false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Message{}, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.Message{}, networkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return chat.Message{}, errorForStatus(resp.StatusCode, apiErrorDetail(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return chat.Message{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	duration := time.Since(start)
	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	c.recordUsage(ctx, apiResp.Usage)

	if len(apiResp.Choices) == 0 {
		return chat.Message{}, &APIError{Kind: KindEmptyResponse, Message: "No response generated"}
	}

	return chat.Message{
		Role:      chat.RoleAssistant,
		Content:   apiResp.Choices[0].Message.Content,
		Timestamp: time.Now(),
	}, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "PolyChat")
}

// recordUsage records OpenTelemetry counters from usage data
func (c *Client) recordUsage(ctx context.Context, usage map[string]interface{}) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		if floatVal, ok := value.(float64); ok {
			counter, err := c.meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				c.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(floatVal))
		}
	}
}

// apiErrorDetail pulls the provider's error message out of a failure
// body, if there is one.
func apiErrorDetail(body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	return errResp.Error.Message
}
