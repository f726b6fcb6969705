package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
)

var (
	ErrToolExecutorAlreadyRegistered = errors.New("tool executor already registered")
	ErrToolExecutorNotRegistered     = errors.New("tool executor not registered")
)

// Registry holds the static set of invocable tools together with the
// JSON-schema specs advertised to the model. Registration happens once at
// wiring time; after that the registry is read-only, so no locking is needed
// under request concurrency.
type Registry struct {
	executors map[string]ToolExecutor
	specs     []llm.ToolSpec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]ToolExecutor)}
}

// Register adds a tool under the spec's function name.
// Specs are advertised to the model in registration order.
func (r *Registry) Register(spec llm.ToolSpec, executor ToolExecutor) error {
	name := strings.TrimSpace(spec.Function.Name)
	if name == "" || executor == nil {
		return ErrToolExecutorNotRegistered
	}
	if _, exists := r.executors[name]; exists {
		return ErrToolExecutorAlreadyRegistered
	}
	r.executors[name] = executor
	r.specs = append(r.specs, spec)
	return nil
}

// Get returns the executor registered under name.
func (r *Registry) Get(name string) (ToolExecutor, error) {
	executor, ok := r.executors[name]
	if !ok {
		return nil, ErrToolExecutorNotRegistered
	}
	return executor, nil
}

// Specs returns the tool advertisements for the model call,
// in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	return r.specs
}

// Dispatch routes a tool-call request to the matching executor and always
// returns a result string: unknown tools and executor errors come back as
// descriptive text for the model to see, never as a failure of the request.
func (r *Registry) Dispatch(ctx context.Context, name string, params json.RawMessage) string {
	executor, err := r.Get(name)
	if err != nil {
		return fmt.Sprintf("Error: Unknown tool '%s'", name)
	}
	result, err := executor.Execute(ctx, params)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}
