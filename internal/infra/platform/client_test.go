package platform

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchSession_NotFoundYieldsDefaults(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "exp-1", discardLogger())
	cfg, msgs := c.FetchSession(context.Background(), "sess_new")

	if cfg != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", cfg)
	}
	if cfg.Temperature != 0.7 || cfg.TopP != 1.0 || cfg.MaxTokens != 2048 {
		t.Errorf("default values wrong: %+v", cfg)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d messages", len(msgs))
	}
}

func TestFetchSession_TransportFailureYieldsDefaults(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	c := NewClient(ts.URL, "exp-1", discardLogger())
	cfg, msgs := c.FetchSession(context.Background(), "sess_x")
	if cfg != DefaultConfig() || msgs != nil {
		t.Errorf("expected defaults on transport failure, got %+v, %v", cfg, msgs)
	}
}

func TestFetchSession_ParsesSessionAndAppendsExperimentID(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/sess_1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("experiment_id"); got != "exp-42" {
			t.Errorf("experiment_id = %q, want exp-42", got)
		}
		w.Write([]byte(`{
			"config": {"system_prompt": "be terse", "temperature": 0.1, "top_p": 0.9, "max_tokens": 512},
			"messages": [
				{"role": "user", "content": "hi"},
				{"role": "assistant", "content": "hello"}
			]
		}`)) //nolint:errcheck
	}))
	defer ts.Close()

	// Experiment id is trimmed the way the env var often arrives.
	c := NewClient(ts.URL, " exp-42\n", discardLogger())
	cfg, msgs := c.FetchSession(context.Background(), "sess_1")

	if cfg.SystemPrompt != "be terse" || cfg.Temperature != 0.1 || cfg.TopP != 0.9 || cfg.MaxTokens != 512 {
		t.Errorf("config = %+v", cfg)
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestFetchSession_PartialConfigGetsDefaults(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// temperature present (and deliberately zero), everything else absent
		w.Write([]byte(`{"config": {"temperature": 0}, "messages": []}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "exp", discardLogger())
	cfg, _ := c.FetchSession(context.Background(), "s")

	if cfg.Temperature != 0 {
		t.Errorf("explicit zero temperature overridden: %v", cfg.Temperature)
	}
	if cfg.SystemPrompt != DefaultSystemPrompt || cfg.TopP != 1.0 || cfg.MaxTokens != 2048 {
		t.Errorf("absent fields not defaulted: %+v", cfg)
	}
}

func TestSaveSession_PostsPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "exp", discardLogger())
	err := c.SaveSession(context.Background(), "sess_1", SavePayload{
		SessionID: "sess_1",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Trace:     map[string]any{"trace_id": "trace_abcd1234"},
		Timestamp: "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("SaveSession returned error: %v", err)
	}

	if got["session_id"] != "sess_1" {
		t.Errorf("session_id = %v", got["session_id"])
	}
	if _, ok := got["trace"].(map[string]any); !ok {
		t.Errorf("trace not serialized as object: %v", got["trace"])
	}
	if _, ok := got["messages"].([]any); !ok {
		t.Errorf("messages not serialized as list: %v", got["messages"])
	}
}

func TestSaveSession_ErrorOnBadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "exp", discardLogger())
	if err := c.SaveSession(context.Background(), "s", SavePayload{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestEndSession_HitsEndEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath string
	var got endSessionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "exp", discardLogger())
	if err := c.EndSession(context.Background(), "sess_9"); err != nil {
		t.Fatalf("EndSession returned error: %v", err)
	}
	if gotPath != "/api/sessions/sess_9/end" {
		t.Errorf("path = %q", gotPath)
	}
	if got.SessionID != "sess_9" || got.EndedAt == "" {
		t.Errorf("body = %+v", got)
	}
}
