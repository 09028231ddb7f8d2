package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/stepgrid/internal/vars"
)

// Snapshot is the durable form of a session: one JSON document holding the
// full node list, edge list, and graph-level attributes including the
// variable store. It round-trips back into an equivalent Store.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	OriginalQuery string         `json:"original_query,omitempty"`
	FileManifest  []string       `json:"file_manifest,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        string         `json:"status"`
	Globals       map[string]any `json:"globals_schema"`
	Nodes         []NodeSnapshot `json:"nodes"`
	Edges         []EdgeSnapshot `json:"edges"`
}

// NodeSnapshot is the durable form of one node, root included.
type NodeSnapshot struct {
	ID            string           `json:"id"`
	Agent         string           `json:"agentType"`
	Description   string           `json:"description,omitempty"`
	AgentPrompt   string           `json:"agentPrompt,omitempty"`
	Reads         []string         `json:"reads,omitempty"`
	Writes        []string         `json:"writes,omitempty"`
	Status        string           `json:"status"`
	Output        map[string]any   `json:"output,omitempty"`
	Error         string           `json:"error,omitempty"`
	Cost          float64          `json:"cost"`
	InputTokens   int              `json:"input_tokens"`
	OutputTokens  int              `json:"output_tokens"`
	TotalTokens   int              `json:"total_tokens"`
	StartTime     *time.Time       `json:"start_time,omitempty"`
	EndTime       *time.Time       `json:"end_time,omitempty"`
	ExecutionTime float64          `json:"execution_time"`
	Iterations    []map[string]any `json:"iterations,omitempty"`
	CallSelfUsed  bool             `json:"call_self_used,omitempty"`
}

// EdgeSnapshot is the durable form of one dependency edge.
type EdgeSnapshot struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Snapshot captures the current state of the whole graph.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked builds the snapshot document. Caller holds the lock.
func (s *Store) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID:     s.sessionID,
		OriginalQuery: s.query,
		FileManifest:  append([]string(nil), s.fileManifest...),
		CreatedAt:     s.createdAt,
		Status:        s.runStatus,
		Globals:       s.vars.Snapshot(),
		Nodes:         make([]NodeSnapshot, 0, len(s.nodes)),
	}
	for i, n := range s.nodes {
		ns := NodeSnapshot{
			ID:            n.ID,
			Agent:         n.Agent,
			Description:   n.Description,
			AgentPrompt:   n.AgentPrompt,
			Reads:         append([]string(nil), n.Reads...),
			Writes:        append([]string(nil), n.Writes...),
			Status:        n.Status.String(),
			Output:        n.Output,
			Error:         n.Error,
			Cost:          n.Cost,
			InputTokens:   n.InputTokens,
			OutputTokens:  n.OutputTokens,
			TotalTokens:   n.TotalTokens,
			ExecutionTime: n.ExecutionTime,
			Iterations:    append([]map[string]any(nil), n.Iterations...),
			CallSelfUsed:  n.CallSelfUsed,
		}
		if !n.StartTime.IsZero() {
			t := n.StartTime
			ns.StartTime = &t
		}
		if !n.EndTime.IsZero() {
			t := n.EndTime
			ns.EndTime = &t
		}
		snap.Nodes = append(snap.Nodes, ns)
		for _, ti := range s.succs[i] {
			snap.Edges = append(snap.Edges, EdgeSnapshot{Source: n.ID, Target: s.nodes[ti].ID})
		}
	}
	return snap
}

// FromSnapshot reconstructs a Store from a snapshot document, restoring
// every node field, the edges, and the variable store.
func FromSnapshot(ctx context.Context, snap *Snapshot, saver SnapshotSaver) (*Store, error) {
	s := &Store{
		sessionID:    snap.SessionID,
		query:        snap.OriginalQuery,
		fileManifest: append([]string(nil), snap.FileManifest...),
		createdAt:    snap.CreatedAt,
		runStatus:    snap.Status,
		index:        make(map[string]int, len(snap.Nodes)),
		vars:         vars.New(),
		saver:        saver,
	}

	rootSeen := false
	for _, ns := range snap.Nodes {
		status, err := ParseStatus(ns.Status)
		if err != nil {
			return nil, fmt.Errorf("graph: restore node %s: %w", ns.ID, err)
		}
		if ns.ID == RootID {
			rootSeen = true
		}
		n := &Node{
			ID:            ns.ID,
			Agent:         ns.Agent,
			Description:   ns.Description,
			AgentPrompt:   ns.AgentPrompt,
			Reads:         append([]string(nil), ns.Reads...),
			Writes:        append([]string(nil), ns.Writes...),
			Status:        status,
			Output:        ns.Output,
			Error:         ns.Error,
			Cost:          ns.Cost,
			InputTokens:   ns.InputTokens,
			OutputTokens:  ns.OutputTokens,
			TotalTokens:   ns.TotalTokens,
			ExecutionTime: ns.ExecutionTime,
			Iterations:    append([]map[string]any(nil), ns.Iterations...),
			CallSelfUsed:  ns.CallSelfUsed,
		}
		if ns.StartTime != nil {
			n.StartTime = *ns.StartTime
		}
		if ns.EndTime != nil {
			n.EndTime = *ns.EndTime
		}
		// A node persisted mid-flight restarts from pending on resume.
		if n.Status == StatusRunning {
			n.Status = StatusPending
			n.StartTime = time.Time{}
		}
		s.addNode(n)
	}
	if !rootSeen {
		return nil, fmt.Errorf("graph: snapshot %s has no root node", snap.SessionID)
	}

	for _, e := range snap.Edges {
		if err := s.addEdge(e.Source, e.Target); err != nil {
			return nil, err
		}
	}
	s.vars.Replace(snap.Globals)

	return s, nil
}
