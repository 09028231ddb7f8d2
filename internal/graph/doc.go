// Package graph owns the execution DAG for one session: the step nodes and
// their dependency edges, per-node execution state and accounting, the
// session-level attributes, and the shared variable store. It knows nothing
// about how steps execute.
//
// The graph is a purpose-built arena: nodes live in a dense slice, an
// id-to-index map resolves names, and predecessor/successor adjacency lists
// make readiness queries cheap. Structure is immutable after construction;
// only node state mutates during a run.
package graph
