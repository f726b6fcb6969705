// Package platform is the HTTP client for the external session store.
// The store owns session config and conversation history; this client reads
// them before a completion run and writes the updated transcript and trace
// after. The gateway must stay usable when the store is down, so reads fall
// back to built-in defaults and writes are best-effort.
// Endpoints used (experiment_id appended to every call):
//   - GET  /api/sessions/{id}      — config + message history (404 = new session)
//   - POST /api/sessions/{id}      — save messages + trace
//   - POST /api/sessions/{id}/end  — session-end notification
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
)

const requestTimeout = 30 * time.Second

// Built-in session defaults, used for new sessions and whenever the store
// is unreachable.
const (
	DefaultSystemPrompt = "You are a helpful assistant with access to web search and calculator tools."
	DefaultTemperature  = 0.7
	DefaultTopP         = 1.0
	DefaultMaxTokens    = 2048
)

// SessionConfig holds the sampling parameters and system prompt for one
// completion run. Immutable for the duration of the run.
type SessionConfig struct {
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	MaxTokens    int     `json:"max_tokens"`
}

// DefaultConfig returns the built-in session configuration.
func DefaultConfig() SessionConfig {
	return SessionConfig{
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		MaxTokens:    DefaultMaxTokens,
	}
}

// SavePayload is the body persisted to the store after a successful run.
// Trace is kept loosely typed here; the chat service passes the finalized
// execution trace.
type SavePayload struct {
	SessionID string        `json:"session_id"`
	Messages  []llm.Message `json:"messages"`
	Trace     any           `json:"trace"`
	Timestamp string        `json:"timestamp"`
}

// Client talks to the session store.
type Client struct {
	baseURL      string
	experimentID string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a Client with a fixed 30s timeout on every call.
// The experiment id is whitespace-trimmed once here; some deployments
// inject it with a trailing newline.
func NewClient(baseURL, experimentID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		experimentID: strings.TrimSpace(experimentID),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// ─── internal wire types ─────────────────────────────────────────────────────

// sessionConfigWire uses pointers so absent fields can be told apart from
// legitimate zero values before defaults are applied.
type sessionConfigWire struct {
	SystemPrompt string   `json:"system_prompt"`
	Temperature  *float64 `json:"temperature"`
	TopP         *float64 `json:"top_p"`
	MaxTokens    *int     `json:"max_tokens"`
}

type sessionResponse struct {
	Config   sessionConfigWire `json:"config"`
	Messages []llm.Message     `json:"messages"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
	EndedAt   string `json:"ended_at"`
}

// ─── operations ──────────────────────────────────────────────────────────────

// FetchSession reads session config and message history. It never fails:
// a 404 means a legitimately new session, and any other failure degrades to
// the built-in defaults with a logged warning (continuity is lost, the chat
// flow is not).
func (c *Client) FetchSession(ctx context.Context, sessionID string) (SessionConfig, []llm.Message) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(sessionID, ""), nil)
	if err != nil {
		c.logger.Warn("platform fetch: build request", "session_id", sessionID, "error", err)
		return DefaultConfig(), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("platform unavailable, using defaults", "session_id", sessionID, "error", err)
		return DefaultConfig(), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("new session, using defaults", "session_id", sessionID)
		return DefaultConfig(), nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("platform fetch failed, using defaults", "session_id", sessionID, "status", resp.StatusCode)
		return DefaultConfig(), nil
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("platform fetch: decode failed, using defaults", "session_id", sessionID, "error", err)
		return DefaultConfig(), nil
	}
	return applyConfigDefaults(body.Config), body.Messages
}

// SaveSession persists the full conversation and execution trace.
// Callers treat a returned error as best-effort (log and continue).
func (c *Client) SaveSession(ctx context.Context, sessionID string, payload SavePayload) error {
	return c.postJSON(ctx, c.sessionURL(sessionID, ""), payload)
}

// EndSession notifies the store that the conversation is complete.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, c.sessionURL(sessionID, "/end"), endSessionRequest{
		SessionID: sessionID,
		EndedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (c *Client) sessionURL(sessionID, suffix string) string {
	return fmt.Sprintf("%s/api/sessions/%s%s?experiment_id=%s",
		c.baseURL, url.PathEscape(sessionID), suffix, url.QueryEscape(c.experimentID))
}

func (c *Client) postJSON(ctx context.Context, u string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("platform post: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("platform post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform post: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform post: status %d", resp.StatusCode)
	}
	return nil
}

// applyConfigDefaults fills absent config fields with the built-in defaults.
// Fields the store did send are kept even when zero (a stored temperature of
// 0.0 is a deliberate choice, not an omission).
func applyConfigDefaults(w sessionConfigWire) SessionConfig {
	cfg := SessionConfig{
		SystemPrompt: w.SystemPrompt,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		MaxTokens:    DefaultMaxTokens,
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if w.Temperature != nil {
		cfg.Temperature = *w.Temperature
	}
	if w.TopP != nil {
		cfg.TopP = *w.TopP
	}
	if w.MaxTokens != nil {
		cfg.MaxTokens = *w.MaxTokens
	}
	return cfg
}
