// Package api wires the gateway's HTTP surface: chi router, middleware,
// and the service graph behind the handlers.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/api/handlers"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/api/web"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/chat"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/tool"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/trace"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/config"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/eventbus"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/platform"
)

// NewRouter creates and configures the chi router with all routes. The full
// service graph (provider, tool registry, session store, loop, archive) is
// constructed here; the archive writer is started on a background goroutine
// consuming the trace bus.
func NewRouter(db *sql.DB, cfg config.Config, logger *slog.Logger) (*chi.Mux, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltIns(registry); err != nil {
		return nil, fmt.Errorf("api: register tools: %w", err)
	}

	provider := llm.NewOpenAIProvider(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	store := platform.NewClient(cfg.Platform.URL, cfg.Platform.ExperimentID, logger)
	loop := chat.NewLoop(provider, registry, cfg.OpenAI.Model, logger)

	bus := eventbus.New()
	archiver := trace.NewArchiveService(db, logger)
	go archiver.Start(context.Background(), bus)

	chatService := chat.NewService(store, loop, bus, logger)

	chatHandler := handlers.NewChatHandler(chatService, logger)
	traceHandler := handlers.NewTraceHandler(archiver)

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check — used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// Browser chat UI
	r.Get("/", web.Index)

	// Chat endpoints
	r.Post("/chat", chatHandler.Chat)              // POST /chat
	r.Post("/end-session", chatHandler.EndSession) // POST /end-session

	// Trace archive (read side)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/traces", func(r chi.Router) {
			r.Get("/", traceHandler.ListTraces)          // GET /api/v1/traces
			r.Get("/{trace_id}", traceHandler.GetTrace)  // GET /api/v1/traces/{trace_id}
		})
	})

	return r, nil
}
