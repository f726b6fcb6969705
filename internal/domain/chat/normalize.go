// Package chat runs the tool-calling completion loop: fetch session state,
// repair persisted history, drive the model until it answers in plain text,
// persist the transcript and execution trace.
package chat

import (
	"fmt"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
)

// NormalizeHistory repairs a persisted transcript into the chat-completions
// wire shape before it is replayed to the model. Two legacy store shapes are
// repaired on assistant tool calls:
//
//   - missing "type" → set to "function"
//   - flat {"name","arguments"} in place of the nested function object →
//     folded into function ("{}" when arguments are absent)
//
// An already-normalized history passes through unchanged, so the repair is
// idempotent. A tool call with no id, or with neither a function object nor
// a flat name, cannot be replayed and fails normalization.
// The input slice is not mutated.
func NormalizeHistory(history []llm.Message) ([]llm.Message, error) {
	out := make([]llm.Message, len(history))
	copy(out, history)

	for i := range out {
		if out[i].Role != llm.RoleAssistant || len(out[i].ToolCalls) == 0 {
			continue
		}

		calls := make([]llm.ToolCall, len(out[i].ToolCalls))
		copy(calls, out[i].ToolCalls)
		for j := range calls {
			normalized, err := normalizeToolCall(calls[j])
			if err != nil {
				return nil, fmt.Errorf("normalize history: message %d, tool call %d: %w", i, j, err)
			}
			calls[j] = normalized
		}
		out[i].ToolCalls = calls
	}

	return out, nil
}

func normalizeToolCall(tc llm.ToolCall) (llm.ToolCall, error) {
	if tc.ID == "" {
		return llm.ToolCall{}, fmt.Errorf("missing id")
	}

	if tc.Type == "" {
		tc.Type = llm.ToolCallTypeFunction
	}

	if tc.Function == nil {
		if tc.FlatName == "" {
			return llm.ToolCall{}, fmt.Errorf("no function payload")
		}
		args := tc.FlatArguments
		if args == "" {
			args = "{}"
		}
		tc.Function = &llm.FunctionCall{Name: tc.FlatName, Arguments: args}
	}

	// Drop the flat fields once folded so re-serialization is canonical.
	tc.FlatName = ""
	tc.FlatArguments = ""

	return tc, nil
}
