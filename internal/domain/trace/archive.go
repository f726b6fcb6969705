package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/eventbus"
)

// TopicTraceFinalized is published once per completion run, after the trace
// has been finalized and the reply (or error) is already on its way out.
const TopicTraceFinalized = "trace.finalized"

// FinalizedPayload is the event payload carried on TopicTraceFinalized.
type FinalizedPayload struct {
	SessionID string
	Trace     *Trace
}

// Archive run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ErrTraceNotFound is returned when a trace id has no archived row.
var ErrTraceNotFound = errors.New("trace not found")

// ArchivedTrace is one row of the local trace archive. Payload is the full
// Trace as it was finalized, kept as raw JSON so the archive never needs a
// schema change when the trace shape grows.
type ArchivedTrace struct {
	TraceID     string          `json:"trace_id"`
	SessionID   string          `json:"session_id"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at"`
	TotalTokens int             `json:"total_tokens"`
	Payload     json.RawMessage `json:"trace"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ArchiveService persists finalized traces to the local SQLite archive.
// All writes are append-only; archived traces are never updated or deleted.
type ArchiveService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchiveService creates an archive service over the given DB.
func NewArchiveService(db *sql.DB, logger *slog.Logger) *ArchiveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveService{db: db, logger: logger}
}

// Start consumes TopicTraceFinalized and archives each trace.
// Runs in the calling goroutine — launch with: go svc.Start(ctx, bus)
// Stops when ctx is cancelled. Archive failures are logged, never fatal.
func (s *ArchiveService) Start(ctx context.Context, bus eventbus.EventBus) {
	ch := bus.Subscribe(TopicTraceFinalized)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			payload, ok := evt.Payload.(FinalizedPayload)
			if !ok {
				continue
			}
			if err := s.Save(ctx, payload.SessionID, payload.Trace); err != nil {
				s.logger.Error("trace archive write failed",
					"trace_id", payload.Trace.TraceID,
					"session_id", payload.SessionID,
					"error", err)
			}
		}
	}
}

// Save archives one finalized trace.
func (s *ArchiveService) Save(ctx context.Context, sessionID string, tr *Trace) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("archive: marshal trace: %w", err)
	}

	status := StatusSuccess
	if tr.Error != "" {
		status = StatusFailed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trace_archive
			(trace_id, session_id, status, error, started_at, completed_at, total_tokens, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.TraceID, sessionID, status, tr.Error, tr.StartedAt, tr.CompletedAt,
		tr.TotalTokens, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: insert trace: %w", err)
	}
	return nil
}

// Get retrieves one archived trace by id.
func (s *ArchiveService) Get(ctx context.Context, traceID string) (*ArchivedTrace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trace_id, session_id, status, error, started_at, completed_at, total_tokens, payload, created_at
		FROM trace_archive
		WHERE trace_id = ?`, traceID)

	at, err := scanArchivedTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTraceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get trace: %w", err)
	}
	return at, nil
}

// List retrieves archived traces, newest first, with pagination.
// Returns the page plus the total row count.
func (s *ArchiveService) List(ctx context.Context, limit, offset int) ([]*ArchivedTrace, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id, session_id, status, error, started_at, completed_at, total_tokens, payload, created_at
		FROM trace_archive
		ORDER BY created_at DESC, trace_id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("archive: list traces: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var traces []*ArchivedTrace
	for rows.Next() {
		at, scanErr := scanArchivedTrace(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("archive: scan trace: %w", scanErr)
		}
		traces = append(traces, at)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("archive: iterate traces: %w", err)
	}

	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trace_archive")
	if err := row.Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("archive: count traces: %w", err)
	}

	return traces, count, nil
}

// ListBySession retrieves archived traces for one session, newest first.
func (s *ArchiveService) ListBySession(ctx context.Context, sessionID string, limit int) ([]*ArchivedTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id, session_id, status, error, started_at, completed_at, total_tokens, payload, created_at
		FROM trace_archive
		WHERE session_id = ?
		ORDER BY created_at DESC, trace_id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list session traces: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var traces []*ArchivedTrace
	for rows.Next() {
		at, scanErr := scanArchivedTrace(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("archive: scan trace: %w", scanErr)
		}
		traces = append(traces, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate traces: %w", err)
	}
	return traces, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanArchivedTrace(s scanner) (*ArchivedTrace, error) {
	var (
		at      ArchivedTrace
		payload string
	)
	err := s.Scan(&at.TraceID, &at.SessionID, &at.Status, &at.Error,
		&at.StartedAt, &at.CompletedAt, &at.TotalTokens, &payload, &at.CreatedAt)
	if err != nil {
		return nil, err
	}
	at.Payload = json.RawMessage(payload)
	return &at, nil
}
