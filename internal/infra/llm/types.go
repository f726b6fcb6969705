// Package llm defines the chat-completion provider abstraction.
// The message and tool-call types double as the wire format: the same shapes
// are sent to the model API and persisted to the platform session store.
package llm

import "encoding/json"

// Message roles. Exactly these four appear in a transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCallTypeFunction is the only tool-call discriminator in use.
const ToolCallTypeFunction = "function"

// Message represents a single turn in a conversation.
// An assistant message carries either plain Content or ToolCalls; a tool
// message carries the ToolCallID of the request it answers.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model-emitted request to invoke a named tool.
// The ID must be echoed verbatim on the corresponding tool-result message.
type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type,omitempty"`
	Function *FunctionCall `json:"function,omitempty"`

	// FlatName/FlatArguments capture the legacy flat shape some platform
	// versions persist ({"id","name","arguments"} without the nested
	// function object). chat.NormalizeHistory folds them into Function;
	// after normalization both are empty and omitted on the wire.
	FlatName      string `json:"name,omitempty"`
	FlatArguments string `json:"arguments,omitempty"`
}

// FunctionCall holds the invocation target and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises a callable tool to the model.
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes one function-style tool with a JSON-schema
// parameter description. The schema advertises capabilities only; runtime
// enforcement is up to the individual tool.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Message     Message // Assistant message; may carry tool calls.
	TotalTokens int     // Total tokens consumed (prompt + completion).
}
