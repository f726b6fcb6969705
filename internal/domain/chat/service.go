package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/trace"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/eventbus"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/platform"
)

// SessionStore is the session-state backend the service talks to.
type SessionStore interface {
	FetchSession(ctx context.Context, sessionID string) (platform.SessionConfig, []llm.Message)
	SaveSession(ctx context.Context, sessionID string, payload platform.SavePayload) error
	EndSession(ctx context.Context, sessionID string) error
}

// Result is what one handled message returns to the transport layer.
type Result struct {
	Reply       string
	TraceID     string
	TotalTokens int
}

// Service owns the message lifecycle: fetch session state, repair history,
// run the completion loop, persist the transcript, publish the trace.
type Service struct {
	store  SessionStore
	loop   *Loop
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the chat service.
func NewService(store SessionStore, loop *Loop, bus eventbus.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, loop: loop, bus: bus, logger: logger}
}

// HandleMessage processes one user message for a session.
//
// The transcript is saved back to the store only on success; the finalized
// trace is published for local archiving on success and failure alike. A
// save failure does not fail the request — the reply already exists, and
// the archive keeps the evidence.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message string) (*Result, error) {
	cfg, history := s.store.FetchSession(ctx, sessionID)

	normalized, err := NormalizeHistory(history)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	res, runErr := s.loop.Run(ctx, cfg, normalized, message)
	if res != nil && res.Trace != nil {
		s.publishTrace(sessionID, res.Trace)
	}
	if runErr != nil {
		return nil, runErr
	}

	payload := platform.SavePayload{
		SessionID: sessionID,
		Messages:  res.Conversation,
		Trace:     res.Trace,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if saveErr := s.store.SaveSession(ctx, sessionID, payload); saveErr != nil {
		s.logger.Warn("session save failed",
			"session_id", sessionID, "trace_id", res.Trace.TraceID, "error", saveErr)
	}

	return &Result{
		Reply:       res.Reply,
		TraceID:     res.Trace.TraceID,
		TotalTokens: res.TotalTokens,
	}, nil
}

// EndSession notifies the store that a session is over. Callers respond
// "ended" regardless; the error is for logging.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	return s.store.EndSession(ctx, sessionID)
}

func (s *Service) publishTrace(sessionID string, tr *trace.Trace) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(trace.TopicTraceFinalized, trace.FinalizedPayload{
		SessionID: sessionID,
		Trace:     tr,
	})
}
