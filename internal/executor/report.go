package executor

import (
	"fmt"
	"strings"

	"github.com/vk/packforgego/internal/archive"
)

// DependencyError marks a package skipped because something it depends
// on failed first.
type DependencyError struct {
	Package    string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("package %q skipped: dependency %q failed", e.Package, e.Dependency)
}

// Outcome is the final result for one package in a run.
type Outcome struct {
	Package string
	State   State
	// Err is the action failure, nil when the action succeeded.
	Err error
	// Bundle is set when the package was requested and archived.
	Bundle *archive.Bundle
	// ArchiveErr is set when the action succeeded but the bundle could
	// not be written. It fails the run without invalidating the output
	// tree, so dependents still assemble.
	ArchiveErr error
}

// Failed reports whether this package counts against the run.
func (o *Outcome) Failed() bool {
	return o.State != StateSucceeded || o.ArchiveErr != nil
}

// Report is the complete per-package outcome set of a run, in manifest
// declaration order. Callers get the full list rather than the first
// failure, so several problems can be fixed per invocation.
type Report struct {
	Outcomes []*Outcome
}

// Outcome returns the entry for the named package, if it was part of the
// run.
func (r *Report) Outcome(name string) (*Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Package == name {
			return o, true
		}
	}
	return nil, false
}

// Failed returns every failed outcome.
func (r *Report) Failed() []*Outcome {
	var failed []*Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err summarizes the run: nil on full success, otherwise an error naming
// the failed packages with the first root-cause error attached. Skip
// outcomes are symptoms, not causes, and never selected as root cause.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}

	names := make([]string, 0, len(failed))
	var rootCause error
	for _, o := range failed {
		names = append(names, o.Package)
		if rootCause != nil {
			continue
		}
		switch {
		case o.State == StateFailed && o.Err != nil:
			rootCause = o.Err
		case o.ArchiveErr != nil:
			rootCause = o.ArchiveErr
		}
	}
	if rootCause == nil {
		rootCause = failed[0].Err
	}
	return fmt.Errorf("build failed for %s: %w", strings.Join(names, ", "), rootCause)
}
