package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/trace"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/eventbus"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/platform"
)

// fakeStore records calls and replays configured session state.
type fakeStore struct {
	config  platform.SessionConfig
	history []llm.Message

	saved    []platform.SavePayload
	saveErr  error
	ended    []string
	endErr   error
	fetched  []string
}

func (f *fakeStore) FetchSession(_ context.Context, sessionID string) (platform.SessionConfig, []llm.Message) {
	f.fetched = append(f.fetched, sessionID)
	return f.config, f.history
}

func (f *fakeStore) SaveSession(_ context.Context, _ string, payload platform.SavePayload) error {
	f.saved = append(f.saved, payload)
	return f.saveErr
}

func (f *fakeStore) EndSession(_ context.Context, sessionID string) error {
	f.ended = append(f.ended, sessionID)
	return f.endErr
}

func newTestService(t *testing.T, provider llm.ChatProvider, store *fakeStore, bus eventbus.EventBus) *Service {
	t.Helper()
	if store.config == (platform.SessionConfig{}) {
		store.config = testSessionConfig()
	}
	loop := NewLoop(provider, builtinRegistry(t), "gpt-4o", nil)
	return NewService(store, loop, bus, nil)
}

func waitForTrace(t *testing.T, ch <-chan eventbus.Event) trace.FinalizedPayload {
	t.Helper()
	select {
	case evt := <-ch:
		payload, ok := evt.Payload.(trace.FinalizedPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", evt.Payload)
		}
		return payload
	case <-time.After(time.Second):
		t.Fatal("no trace published within 1s")
		return trace.FinalizedPayload{}
	}
}

func TestService_HandleMessage_Success(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	bus := eventbus.New()
	traceCh := bus.Subscribe(trace.TopicTraceFinalized)
	provider := &scriptedProvider{responses: []llm.ChatResponse{assistantText("hello!", 9)}}
	svc := newTestService(t, provider, store, bus)

	res, err := svc.HandleMessage(context.Background(), "sess-1", "hi")
	if err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	if res.Reply != "hello!" {
		t.Errorf("Reply = %q; want hello!", res.Reply)
	}
	if res.TraceID == "" {
		t.Error("TraceID is empty")
	}
	if len(store.fetched) != 1 || store.fetched[0] != "sess-1" {
		t.Errorf("fetched sessions = %v; want [sess-1]", store.fetched)
	}

	// Transcript saved back: user + assistant, no system message
	if len(store.saved) != 1 {
		t.Fatalf("SaveSession called %d times; want 1", len(store.saved))
	}
	saved := store.saved[0]
	if saved.SessionID != "sess-1" {
		t.Errorf("saved SessionID = %q", saved.SessionID)
	}
	if len(saved.Messages) != 2 {
		t.Fatalf("saved %d messages; want 2", len(saved.Messages))
	}
	for _, m := range saved.Messages {
		if m.Role == llm.RoleSystem {
			t.Error("system message leaked into the saved transcript")
		}
	}

	// Trace published for archiving
	payload := waitForTrace(t, traceCh)
	if payload.SessionID != "sess-1" {
		t.Errorf("published SessionID = %q", payload.SessionID)
	}
	if payload.Trace.TraceID != res.TraceID {
		t.Errorf("published trace id %q != result trace id %q", payload.Trace.TraceID, res.TraceID)
	}
}

func TestService_HandleMessage_NormalizesStoredHistory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		history: []llm.Message{
			{Role: llm.RoleUser, Content: "what is 2+2?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
				{ID: "call_old", FlatName: "calculator", FlatArguments: `{"expression":"2+2"}`},
			}},
			{Role: llm.RoleTool, ToolCallID: "call_old", Name: "calculator", Content: "4"},
			{Role: llm.RoleAssistant, Content: "It is 4."},
		},
	}
	provider := &scriptedProvider{responses: []llm.ChatResponse{assistantText("still 4", 3)}}
	svc := newTestService(t, provider, store, eventbus.New())

	if _, err := svc.HandleMessage(context.Background(), "sess-legacy", "and now?"); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	// The replayed history must carry the repaired nested shape
	req := provider.requests[0]
	var assistant *llm.Message
	for i := range req.Messages {
		if len(req.Messages[i].ToolCalls) > 0 {
			assistant = &req.Messages[i]
			break
		}
	}
	if assistant == nil {
		t.Fatal("no assistant tool-call message in replayed history")
	}
	tc := assistant.ToolCalls[0]
	if tc.Function == nil || tc.Function.Name != "calculator" {
		t.Errorf("replayed tool call not normalized: %+v", tc)
	}
	if tc.Type != llm.ToolCallTypeFunction {
		t.Errorf("replayed tool call type = %q", tc.Type)
	}
}

func TestService_HandleMessage_UnrepairableHistory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		history: []llm.Message{
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{FlatName: "calculator"}}},
		},
	}
	provider := &scriptedProvider{responses: []llm.ChatResponse{assistantText("unreachable", 1)}}
	svc := newTestService(t, provider, store, eventbus.New())

	_, err := svc.HandleMessage(context.Background(), "sess-bad", "hi")
	if err == nil {
		t.Fatal("HandleMessage = nil error; want normalization failure")
	}
	if len(provider.requests) != 0 {
		t.Error("model was called despite unrepairable history")
	}
	if len(store.saved) != 0 {
		t.Error("SaveSession called despite normalization failure")
	}
}

func TestService_HandleMessage_LoopFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	bus := eventbus.New()
	traceCh := bus.Subscribe(trace.TopicTraceFinalized)
	provider := &failingProvider{err: errors.New("status 503")}
	svc := newTestService(t, provider, store, bus)

	_, err := svc.HandleMessage(context.Background(), "sess-down", "hi")
	if !errors.Is(err, ErrModelAPI) {
		t.Fatalf("HandleMessage error = %v; want ErrModelAPI", err)
	}

	// Not persisted to the store, but the failed trace still reaches the bus
	if len(store.saved) != 0 {
		t.Error("SaveSession called for a failed run")
	}
	payload := waitForTrace(t, traceCh)
	if payload.Trace.Error == "" {
		t.Error("published trace carries no error")
	}
}

func TestService_HandleMessage_SaveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("store offline")}
	provider := &scriptedProvider{responses: []llm.ChatResponse{assistantText("fine", 2)}}
	svc := newTestService(t, provider, store, eventbus.New())

	res, err := svc.HandleMessage(context.Background(), "sess-flaky", "hi")
	if err != nil {
		t.Fatalf("HandleMessage error = %v; want nil (save is best-effort)", err)
	}
	if res.Reply != "fine" {
		t.Errorf("Reply = %q", res.Reply)
	}
}

func TestService_EndSession(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	provider := &scriptedProvider{}
	svc := newTestService(t, provider, store, eventbus.New())

	if err := svc.EndSession(context.Background(), "sess-done"); err != nil {
		t.Fatalf("EndSession error = %v", err)
	}
	if len(store.ended) != 1 || store.ended[0] != "sess-done" {
		t.Errorf("ended sessions = %v; want [sess-done]", store.ended)
	}
}
