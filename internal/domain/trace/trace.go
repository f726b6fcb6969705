// Package trace models the execution trace of one completion run: every
// model turn and tool invocation, timestamped, finalized exactly once with
// either token usage or an error.
package trace

import (
	"encoding/json"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/pkg/uuid"
)

// ResultPreviewLen is how much of a tool result the trace keeps verbatim.
// Longer results are cut at this length and marked with an ellipsis; the
// full output still reaches the model through the conversation itself.
const ResultPreviewLen = 200

// ConfigSnapshot pins the model and sampling parameters a run was started
// with, so an archived trace is reproducible in isolation.
type ConfigSnapshot struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// TurnToolCall is the compact tool-call form recorded on assistant turns.
type TurnToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one recorded conversation step (user, assistant or tool).
type Turn struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []TurnToolCall `json:"tool_calls,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// ToolCallRecord is the audit entry for one tool execution.
type ToolCallRecord struct {
	Name             string          `json:"name"`
	Arguments        json.RawMessage `json:"arguments"`
	Result           string          `json:"result"` // preview, ≤ ResultPreviewLen chars (+ "...")
	FullResultLength int             `json:"full_result_length"`
	DurationMs       float64         `json:"duration_ms"`
	Timestamp        string          `json:"timestamp"`
}

// Trace is the audit record of one completion run. Appended to
// monotonically while the run is in flight, then finalized exactly once.
type Trace struct {
	TraceID     string           `json:"trace_id"`
	StartedAt   string           `json:"started_at"`
	CompletedAt string           `json:"completed_at,omitempty"`
	Config      ConfigSnapshot   `json:"config"`
	Turns       []Turn           `json:"turns"`
	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	TotalTokens int              `json:"total_tokens,omitempty"` // success only
	Error       string           `json:"error,omitempty"`        // failure only

	finalized bool
}

// New creates a Trace with a fresh id and a start timestamp.
func New(cfg ConfigSnapshot) *Trace {
	return &Trace{
		TraceID:   "trace_" + uuid.NewV7().Short(),
		StartedAt: nowUTC(),
		Config:    cfg,
		Turns:     []Turn{},
		ToolCalls: []ToolCallRecord{},
	}
}

// RecordUserTurn appends the triggering user message.
func (t *Trace) RecordUserTurn(content string) {
	t.Turns = append(t.Turns, Turn{
		Role:      "user",
		Content:   content,
		Timestamp: nowUTC(),
	})
}

// RecordAssistantText appends a final assistant response (no tool calls).
func (t *Trace) RecordAssistantText(content string) {
	t.Turns = append(t.Turns, Turn{
		Role:      "assistant",
		Content:   content,
		Timestamp: nowUTC(),
	})
}

// RecordAssistantToolCalls appends an assistant turn that requested tools.
func (t *Trace) RecordAssistantToolCalls(content string, calls []TurnToolCall) {
	t.Turns = append(t.Turns, Turn{
		Role:      "assistant",
		Content:   content,
		ToolCalls: calls,
		Timestamp: nowUTC(),
	})
}

// RecordToolResult appends the tool-role turn for one executed call.
// The turn carries the full result; the preview lives in the ToolCalls list.
func (t *Trace) RecordToolResult(name, toolCallID, result string) {
	t.Turns = append(t.Turns, Turn{
		Role:       "tool",
		Name:       name,
		Content:    result,
		ToolCallID: toolCallID,
		Timestamp:  nowUTC(),
	})
}

// AddToolCall appends the audit record for one tool execution.
// startedAt is when the tool began executing; duration its wall-clock time.
func (t *Trace) AddToolCall(name string, arguments json.RawMessage, result string, duration time.Duration, startedAt time.Time) {
	t.ToolCalls = append(t.ToolCalls, ToolCallRecord{
		Name:             name,
		Arguments:        arguments,
		Result:           preview(result),
		FullResultLength: len(result),
		DurationMs:       float64(duration) / float64(time.Millisecond),
		Timestamp:        startedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Complete finalizes the trace as a success. A second finalize is a no-op.
func (t *Trace) Complete(totalTokens int) {
	if t.finalized {
		return
	}
	t.finalized = true
	t.CompletedAt = nowUTC()
	t.TotalTokens = totalTokens
}

// Fail finalizes the trace with an error. A second finalize is a no-op.
func (t *Trace) Fail(errMsg string) {
	if t.finalized {
		return
	}
	t.finalized = true
	t.CompletedAt = nowUTC()
	t.Error = errMsg
}

// Finalized reports whether Complete or Fail has been called.
func (t *Trace) Finalized() bool {
	return t.finalized
}

// preview truncates a tool result for the audit record.
func preview(result string) string {
	if len(result) <= ResultPreviewLen {
		return result
	}
	return result[:ResultPreviewLen] + "..."
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
