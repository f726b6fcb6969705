package tool

import (
	"context"
	"encoding/json"
)

// ToolExecutor defines the runtime contract for executable tools.
// Executors report their own failures as descriptive result strings
// wherever possible; a returned error is reserved for conditions the
// executor could not fold into output, and the dispatcher converts it
// to a string anyway — nothing propagates past the tool boundary.
type ToolExecutor interface {
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}
