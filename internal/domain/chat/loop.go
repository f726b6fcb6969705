package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/tool"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/trace"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/platform"
)

// maxIterations bounds the number of model round-trips in one run. A model
// that keeps requesting tools past this limit fails the run rather than
// looping forever.
const maxIterations = 10

var (
	// ErrModelAPI wraps any model API failure surfaced mid-loop.
	ErrModelAPI = errors.New("model API request failed")

	// ErrMaxIterations is returned when the model never produced a plain
	// text answer within maxIterations round-trips.
	ErrMaxIterations = errors.New("maximum tool iterations reached")
)

// Loop drives the bounded tool-calling completion loop for one user message.
type Loop struct {
	provider llm.ChatProvider
	tools    *tool.Registry
	model    string // recorded in the trace config snapshot
	logger   *slog.Logger
}

// NewLoop creates a completion loop over the given provider and tool registry.
func NewLoop(provider llm.ChatProvider, tools *tool.Registry, model string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{provider: provider, tools: tools, model: model, logger: logger}
}

// LoopResult is the outcome of one completed (or failed) run.
// Conversation is the transcript without the system message: prior history,
// the new user message, and every assistant/tool message the run produced.
type LoopResult struct {
	Reply        string
	Conversation []llm.Message
	Trace        *trace.Trace
	TotalTokens  int
}

// Run executes the completion loop: send the conversation with tool specs,
// execute any requested tools sequentially in emitted order, feed results
// back, and repeat until the model answers in plain text or the iteration
// cap is hit.
//
// On failure the returned LoopResult is still populated (finalized trace,
// partial conversation) alongside the error, so callers can archive the
// failed run.
func (l *Loop) Run(ctx context.Context, cfg platform.SessionConfig, history []llm.Message, userMessage string) (*LoopResult, error) {
	tr := trace.New(trace.ConfigSnapshot{
		Model:       l.model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	})
	tr.RecordUserTurn(userMessage)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: cfg.SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	totalTokens := 0
	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := l.provider.ChatCompletion(ctx, llm.ChatRequest{
			Messages:    messages,
			Tools:       l.tools.Specs(),
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			runErr := fmt.Errorf("%w: %v", ErrModelAPI, err)
			tr.Fail(runErr.Error())
			return l.failedResult(tr, messages, totalTokens), runErr
		}
		totalTokens += resp.TotalTokens

		assistant := resp.Message
		messages = append(messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			tr.RecordAssistantText(assistant.Content)
			tr.Complete(totalTokens)
			return &LoopResult{
				Reply:        assistant.Content,
				Conversation: messages[1:],
				Trace:        tr,
				TotalTokens:  totalTokens,
			}, nil
		}

		turnCalls, err := turnToolCalls(assistant.ToolCalls)
		if err != nil {
			runErr := fmt.Errorf("%w: %v", ErrModelAPI, err)
			tr.Fail(runErr.Error())
			return l.failedResult(tr, messages, totalTokens), runErr
		}
		tr.RecordAssistantToolCalls(assistant.Content, turnCalls)

		for _, tc := range assistant.ToolCalls {
			name := tc.Function.Name
			args := json.RawMessage(tc.Function.Arguments)

			started := time.Now()
			result := l.tools.Dispatch(ctx, name, args)
			tr.AddToolCall(name, args, result, time.Since(started), started)
			tr.RecordToolResult(name, tc.ID, result)

			l.logger.Debug("tool executed",
				"trace_id", tr.TraceID, "tool", name, "result_length", len(result))

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
				Name:       name,
			})
		}
	}

	tr.Fail(ErrMaxIterations.Error())
	return l.failedResult(tr, messages, totalTokens), ErrMaxIterations
}

func (l *Loop) failedResult(tr *trace.Trace, messages []llm.Message, totalTokens int) *LoopResult {
	return &LoopResult{
		Conversation: messages[1:],
		Trace:        tr,
		TotalTokens:  totalTokens,
	}
}

// turnToolCalls converts model-emitted tool calls into the trace's compact
// form. A call with no function payload means the provider returned a shape
// this loop cannot execute.
func turnToolCalls(calls []llm.ToolCall) ([]trace.TurnToolCall, error) {
	out := make([]trace.TurnToolCall, len(calls))
	for i, tc := range calls {
		if tc.Function == nil {
			return nil, fmt.Errorf("tool call %q has no function payload", tc.ID)
		}
		out[i] = trace.TurnToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return out, nil
}
