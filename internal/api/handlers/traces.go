package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/trace"
)

// TraceReader is the read side of the local trace archive.
type TraceReader interface {
	Get(ctx context.Context, traceID string) (*trace.ArchivedTrace, error)
	List(ctx context.Context, limit, offset int) ([]*trace.ArchivedTrace, int, error)
}

// TraceHandler serves the trace archive endpoints.
type TraceHandler struct {
	archive TraceReader
}

// NewTraceHandler creates a trace handler.
func NewTraceHandler(archive TraceReader) *TraceHandler {
	return &TraceHandler{archive: archive}
}

type traceListResponse struct {
	Traces []*trace.ArchivedTrace `json:"traces"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ListTraces handles GET /api/v1/traces.
func (h *TraceHandler) ListTraces(w http.ResponseWriter, r *http.Request) {
	p := parsePaginationParams(r)

	traces, total, err := h.archive.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}
	if traces == nil {
		traces = []*trace.ArchivedTrace{}
	}

	writeJSON(w, http.StatusOK, traceListResponse{
		Traces: traces,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

// GetTrace handles GET /api/v1/traces/{trace_id}.
func (h *TraceHandler) GetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "trace_id")

	at, err := h.archive.Get(r.Context(), traceID)
	if errors.Is(err, trace.ErrTraceNotFound) {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trace")
		return
	}

	writeJSON(w, http.StatusOK, at)
}
