// Package llm — OpenAI HTTP adapter.
// OpenAIProvider calls the chat-completions REST API using stdlib net/http.
// Endpoints used:
//   - POST /chat/completions — non-streaming chat completion with tools
//   - GET  /models           — health check (lists available models)
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultBaseURL is the hosted OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// OpenAIProvider implements ChatProvider against the OpenAI API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider. The client carries no fixed
// timeout: completions that drive long tool loops can legitimately run for
// minutes, and cancellation belongs to the caller's context.
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// ─── internal OpenAI JSON types ──────────────────────────────────────────────

type openaiChatRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature float64    `json:"temperature"`
	TopP        float64    `json:"top_p"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ─── ChatProvider implementation ─────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat via POST /chat/completions.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(openaiChatRequest{
		Model:       p.model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/chat/completions", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var apiResp openaiChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&apiResp); decodeErr != nil {
		return nil, fmt.Errorf("decode chat response: %w", decodeErr)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("chat response contains no choices")
	}
	return &ChatResponse{
		Message:     apiResp.Choices[0].Message,
		TotalTokens: apiResp.Usage.TotalTokens,
	}, nil
}

// HealthCheck calls GET /models — returns nil if the API accepts the key.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	url := p.baseURL + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("openai healthcheck: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends an authenticated POST to baseURL+path and returns the response
// body. Caller is responsible for closing the returned ReadCloser.
func (p *OpenAIProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("openai post %s: status %d: %s", path, resp.StatusCode, apiErrorMessage(resp.Body))
	}
	return resp.Body, nil
}

// apiErrorMessage extracts the error message from an OpenAI error body,
// falling back to a raw snippet when the body is not the expected JSON.
func apiErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil || len(raw) == 0 {
		return "no error body"
	}
	var apiErr openaiErrorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(raw)
}
