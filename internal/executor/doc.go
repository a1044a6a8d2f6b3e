// Package executor orchestrates a build run: it walks the dependency
// graph in topological waves, dispatches fetch, build and assemble
// actions to a bounded worker pool, archives requested packages as they
// complete and reports a per-package outcome set at the end.
//
// Failure semantics: a failed node marks all of its dependents failed
// without executing them, but never aborts unrelated subgraphs; one
// broken package does not block packages that do not depend on it.
package executor
