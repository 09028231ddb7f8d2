package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownAgent reports a step whose agent kind has no registered worker.
var ErrUnknownAgent = errors.New("agent: no worker registered for agent kind")

// SessionContext carries session metadata some agent kinds receive with
// every invocation.
type SessionContext struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	FileManifest []string  `json:"file_manifest,omitempty"`
}

// Invocation is the input contract for one worker call. It is serialized
// verbatim into the worker's instruction payload, so field names follow the
// wire convention.
type Invocation struct {
	StepID           string          `json:"step_id"`
	Agent            string          `json:"agent_type"`
	Instruction      string          `json:"agent_prompt"`
	Reads            []string        `json:"reads"`
	Writes           []string        `json:"writes"`
	Inputs           map[string]any  `json:"inputs"`
	PreviousOutput   Output          `json:"previous_output,omitempty"`
	IterationContext any             `json:"iteration_context,omitempty"`
	OriginalQuery    string          `json:"original_query,omitempty"`
	AllGlobals       map[string]any  `json:"all_globals_schema,omitempty"`
	Session          *SessionContext `json:"session_context,omitempty"`
}

// Worker executes one step invocation. Implementations must return a
// failure result rather than hang: the engine applies no timeout of its
// own, and treats any error identically regardless of cause.
type Worker interface {
	Invoke(ctx context.Context, inv Invocation) (Output, error)
}

// Registry maps agent kinds to workers. A fallback worker, when set,
// serves every kind with no explicit registration.
type Registry struct {
	mu       sync.RWMutex
	workers  map[string]Worker
	fallback Worker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// Register installs the worker for an agent kind.
func (r *Registry) Register(agent string, w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[agent] = w
}

// RegisterFallback installs the worker used for kinds with no explicit
// registration.
func (r *Registry) RegisterFallback(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = w
}

// Lookup resolves the worker for an agent kind.
func (r *Registry) Lookup(agent string) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[agent]; ok {
		return w, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agent)
}
