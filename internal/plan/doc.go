// Package plan defines the execution plan model consumed at graph
// construction: a list of agent steps plus the dependency edges between
// them, as produced by an external planning collaborator.
package plan
