// Package executor drives a session graph to completion in rounds. Each
// round marks every ready node running, dispatches them concurrently, waits
// for the whole round, then applies results in ready-set order so variable
// writes stay deterministic.
package executor
