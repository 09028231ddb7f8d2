// Package agent defines the worker boundary: the per-call invocation
// contract, the loosely-typed output document workers return, the registry
// mapping agent kinds to workers, and an LLM-backed worker implementation.
package agent
