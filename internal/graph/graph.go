package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/stepgrid/internal/ctxlog"
	"github.com/vk/stepgrid/internal/plan"
	"github.com/vk/stepgrid/internal/vars"
)

// RootID is the synthetic root node present in every graph. It is completed
// at construction and represents "no dependencies".
const RootID = plan.RootID

// Status is the execution state of a node. Transitions only move forward
// along pending → running → {completed, failed}; a terminal node never
// re-enters running.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

// String returns the snapshot wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Terminal reports whether the status is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus converts the snapshot wire form back into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "running":
		return StatusRunning, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	}
	return StatusPending, fmt.Errorf("graph: unknown status %q", s)
}

// Costs carries the accounting counters recorded when a node completes.
type Costs struct {
	Cost         float64
	InputTokens  int
	OutputTokens int
}

// Node is a single step in the graph plus its execution state. Callers
// receive copies; the Output map is shared and must not be mutated.
type Node struct {
	ID          string
	Agent       string
	Description string
	AgentPrompt string
	Reads       []string
	Writes      []string

	Status Status
	Output map[string]any
	Error  string

	Cost         float64
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	StartTime     time.Time
	EndTime       time.Time
	ExecutionTime float64

	// Iterations retains each self-call round's output for inspection.
	// Only the final output populates the variable store.
	Iterations   []map[string]any
	CallSelfUsed bool
}

// Instruction returns the worker instruction for the node: the agent prompt
// when present, the description otherwise.
func (n *Node) Instruction() string {
	if n.AgentPrompt != "" {
		return n.AgentPrompt
	}
	return n.Description
}

// SnapshotSaver persists session snapshots. Saves are advisory: the graph
// never surfaces a save failure to its caller.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
}

// Options configures graph construction.
type Options struct {
	// SessionID identifies the session; a UUID is generated when empty.
	SessionID string
	// Query is the original user request that produced the plan.
	Query string
	// FileManifest lists files attached to the session.
	FileManifest []string
	// Saver receives a best-effort snapshot after every mutation. May be nil.
	Saver SnapshotSaver
}

// Store is the concurrency-safe graph for one session.
type Store struct {
	mu sync.RWMutex

	sessionID    string
	query        string
	fileManifest []string
	createdAt    time.Time
	runStatus    string

	nodes []*Node
	index map[string]int
	preds [][]int
	succs [][]int

	vars  *vars.Store
	saver SnapshotSaver
}

// New builds a validated graph from a plan. A malformed plan (cycle,
// unknown edge endpoint, duplicate id) fails construction before any
// execution begins.
func New(ctx context.Context, p *plan.Plan, opts Options) (*Store, error) {
	logger := ctxlog.FromContext(ctx)

	if err := p.Validate(); err != nil {
		return nil, err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	query := opts.Query
	if query == "" {
		query = p.Query
	}

	s := &Store{
		sessionID:    sessionID,
		query:        query,
		fileManifest: opts.FileManifest,
		createdAt:    time.Now().UTC(),
		runStatus:    "running",
		index:        make(map[string]int, len(p.Steps)+1),
		vars:         vars.New(),
		saver:        opts.Saver,
	}

	s.addNode(&Node{
		ID:          RootID,
		Agent:       "System",
		Description: "Initial Query",
		Status:      StatusCompleted,
	})
	for _, step := range p.Steps {
		s.addNode(&Node{
			ID:          step.ID,
			Agent:       step.Agent,
			Description: step.Description,
			AgentPrompt: step.AgentPrompt,
			Reads:       append([]string(nil), step.Reads...),
			Writes:      append([]string(nil), step.Writes...),
			Status:      StatusPending,
		})
	}
	for _, e := range p.Edges {
		if err := s.addEdge(e.Source, e.Target); err != nil {
			return nil, err
		}
	}

	for name, value := range p.Seed {
		s.vars.Set(name, value)
	}

	logger.Debug("Graph constructed.",
		"session_id", sessionID, "nodes", len(s.nodes)-1, "edges", len(p.Edges))
	return s, nil
}

// addNode appends a node to the arena. Construction only.
func (s *Store) addNode(n *Node) {
	s.index[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	s.preds = append(s.preds, nil)
	s.succs = append(s.succs, nil)
}

// addEdge wires a dependency: target depends on source. Construction only.
func (s *Store) addEdge(source, target string) error {
	si, ok := s.index[source]
	if !ok {
		return fmt.Errorf("%w: source %q", plan.ErrUnknownNode, source)
	}
	ti, ok := s.index[target]
	if !ok {
		return fmt.Errorf("%w: target %q", plan.ErrUnknownNode, target)
	}
	s.succs[si] = append(s.succs[si], ti)
	s.preds[ti] = append(s.preds[ti], si)
	return nil
}

// SessionID returns the session identifier.
func (s *Store) SessionID() string { return s.sessionID }

// Query returns the original request the plan was produced for.
func (s *Store) Query() string { return s.query }

// CreatedAt returns the session creation timestamp.
func (s *Store) CreatedAt() time.Time { return s.createdAt }

// FileManifest returns the files attached to the session.
func (s *Store) FileManifest() []string { return s.fileManifest }

// Vars returns the session's shared variable store.
func (s *Store) Vars() *vars.Store { return s.vars }

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.copyNode(i), true
}

// copyNode clones the node at arena index i. Caller holds the lock.
func (s *Store) copyNode(i int) Node {
	n := *s.nodes[i]
	n.Reads = append([]string(nil), n.Reads...)
	n.Writes = append([]string(nil), n.Writes...)
	n.Iterations = append([]map[string]any(nil), n.Iterations...)
	return n
}

// NodeIDs returns every step id (excluding the root) in insertion order.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.nodes)-1)
	for _, n := range s.nodes[1:] {
		ids = append(ids, n.ID)
	}
	return ids
}

// ReadyNodes returns every non-terminal, non-running node whose every
// predecessor is completed, sorted by id. Sorting keeps scheduling
// reproducible: the same status snapshot always yields the same set in the
// same order.
func (s *Store) ReadyNodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ready []string
	for i, n := range s.nodes {
		if n.ID == RootID || n.Status != StatusPending {
			continue
		}
		ok := true
		for _, pi := range s.preds[i] {
			if s.nodes[pi].Status != StatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, n.ID)
		}
	}
	sort.Strings(ready)
	return ready
}

// MarkRunning transitions a node pending → running and stamps its start
// time. Calling it on a non-pending node is a logged no-op; the ReadyNodes
// contract makes that unreachable in normal operation.
func (s *Store) MarkRunning(ctx context.Context, id string) {
	logger := ctxlog.FromContext(ctx)
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].Status != StatusPending {
		s.mu.Unlock()
		logger.Warn("MarkRunning on non-pending node, ignoring.", "node_id", id)
		return
	}
	s.nodes[i].Status = StatusRunning
	s.nodes[i].StartTime = time.Now().UTC()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.save(ctx, snap)
}

// MarkCompleted transitions a node running → completed, stores its final
// output and accounting counters, and stamps the end time.
func (s *Store) MarkCompleted(ctx context.Context, id string, output map[string]any, costs Costs) {
	logger := ctxlog.FromContext(ctx)
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].Status != StatusRunning {
		s.mu.Unlock()
		logger.Warn("MarkCompleted on non-running node, ignoring.", "node_id", id)
		return
	}
	n := s.nodes[i]
	n.Status = StatusCompleted
	n.Output = output
	n.Cost = costs.Cost
	n.InputTokens = costs.InputTokens
	n.OutputTokens = costs.OutputTokens
	n.TotalTokens = costs.InputTokens + costs.OutputTokens
	s.stampEndLocked(n)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	logger.Info("✅ Step completed.", "node_id", id, "execution_time", n.ExecutionTime)
	s.save(ctx, snap)
}

// MarkFailed transitions a node running → failed and records the error.
func (s *Store) MarkFailed(ctx context.Context, id string, errMsg string) {
	logger := ctxlog.FromContext(ctx)
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].Status != StatusRunning {
		s.mu.Unlock()
		logger.Warn("MarkFailed on non-running node, ignoring.", "node_id", id)
		return
	}
	n := s.nodes[i]
	n.Status = StatusFailed
	n.Error = errMsg
	s.stampEndLocked(n)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	logger.Error("Step failed.", "node_id", id, "error", errMsg)
	s.save(ctx, snap)
}

// SetIterations attaches the self-call iteration history to a node.
func (s *Store) SetIterations(ctx context.Context, id string, iterations []map[string]any) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		ctxlog.FromContext(ctx).Warn("SetIterations on unknown node, ignoring.", "node_id", id)
		return
	}
	s.nodes[i].Iterations = iterations
	s.nodes[i].CallSelfUsed = len(iterations) > 1
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.save(ctx, snap)
}

// SetRunStatus records the graph-level run status ("running", "done",
// "stalled").
func (s *Store) SetRunStatus(ctx context.Context, status string) {
	s.mu.Lock()
	s.runStatus = status
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.save(ctx, snap)
}

// RunStatus returns the graph-level run status.
func (s *Store) RunStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runStatus
}

// IsDone reports whether every step is completed or failed.
func (s *Store) IsDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}

// HasFailed reports whether any step has failed.
func (s *Store) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Status == StatusFailed {
			return true
		}
	}
	return false
}

// stampEndLocked records the end time and derived execution time.
func (s *Store) stampEndLocked(n *Node) {
	n.EndTime = time.Now().UTC()
	if !n.StartTime.IsZero() {
		n.ExecutionTime = n.EndTime.Sub(n.StartTime).Seconds()
	}
}

// save hands the snapshot to the persistence adapter. Persistence is
// advisory: a failure is logged, never raised. Mutations are serialized by
// their callers, so snapshots reach the adapter in order.
func (s *Store) save(ctx context.Context, snap *Snapshot) {
	if s.saver == nil {
		return
	}
	if err := s.saver.SaveSnapshot(context.WithoutCancel(ctx), snap); err != nil {
		ctxlog.FromContext(ctx).Warn("Session autosave failed.", "session_id", snap.SessionID, "error", err)
	}
}
