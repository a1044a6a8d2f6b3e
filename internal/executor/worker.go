package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
)

// worker is the processing loop of a single pool member. It owns the
// staging directory of whichever node it is executing; no other worker
// touches that node until it reaches a terminal state.
func (e *Executor) worker(ctx context.Context, id int) {
	logger := ctxlog.FromContext(ctx).With("worker", id)

	for n := range e.ready {
		node := n
		if ctx.Err() != nil {
			node.skipOnce.Do(func() {
				logger.Warn("Run canceled, skipping package.", "package", node.name)
				e.table.transition(node.name, StateSkipped, ctx.Err())
				e.wg.Done()
				e.skipDependents(ctx, node)
			})
			continue
		}

		e.table.transition(node.name, StateInProgress, nil)
		logger.Debug("Executing package action.", "package", node.name)

		if err := e.executeNode(ctx, node); err != nil {
			logger.Error("Package action failed.", "package", node.name, "error", err)
			e.table.transition(node.name, StateFailed, err)
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}
		e.table.transition(node.name, StateSucceeded, nil)
		logger.Debug("Package action succeeded.", "package", node.name)

		if e.targets[node.name] {
			bundle, err := e.deps.Archiver.Archive(ctx, node.spec, node.stagingDir)
			if err != nil {
				// The output tree stays valid for dependents; only the
				// bundle (and therefore the run) is failed.
				logger.Error("Archiving failed.", "package", node.name, "error", err)
				node.archiveErr = err
			} else {
				logger.Info("Package archived.", "package", node.name, "path", bundle.Path)
				node.bundle = bundle
			}
		}

		for _, depName := range e.graph.Dependents(node.name) {
			dependent, ok := e.nodes[depName]
			if !ok {
				continue // outside the requested closure
			}
			if dependent.depCount.Add(-1) == 0 {
				logger.Debug("Unlocking dependent package.", "package", depName)
				e.ready <- dependent
			}
		}
		e.wg.Done()
	}
}

// skipDependents marks every downstream package failed without executing
// it. Each node is settled exactly once; the cascade keeps the pool's
// wait group balanced for nodes that will never be enqueued.
func (e *Executor) skipDependents(ctx context.Context, node *runNode) {
	logger := ctxlog.FromContext(ctx)
	for _, depName := range e.graph.Dependents(node.name) {
		dependent, ok := e.nodes[depName]
		if !ok {
			continue
		}
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping package due to upstream failure.",
				"package", dependent.name, "dependency", node.name)
			e.table.transition(dependent.name, StateSkipped,
				&DependencyError{Package: dependent.name, Dependency: node.name})
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}

// executeNode runs the action matching the node's source kind, staging
// its output tree under the node's exclusive staging directory.
func (e *Executor) executeNode(ctx context.Context, node *runNode) error {
	if err := os.MkdirAll(node.stagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory for %q: %w", node.name, err)
	}

	switch src := node.spec.Source.(type) {
	case *config.LocalSource:
		if err := e.deps.Builder.Build(ctx, node.name, src, node.stagingDir); err != nil {
			return err
		}
	case *config.PrebuiltSource:
		if _, err := e.deps.Fetcher.Fetch(ctx, node.name, src, node.stagingDir); err != nil {
			return err
		}
	case *config.CompositeSource:
		// Scheduling guarantees every part is terminal; the assembler
		// still refuses any part that did not succeed.
		parts := make(map[string]string, len(src.Parts))
		for _, part := range src.Parts {
			partNode, ok := e.nodes[part]
			if !ok {
				continue
			}
			if state, _ := e.table.get(part); state == StateSucceeded {
				parts[part] = partNode.stagingDir
			}
		}
		return e.deps.Assembler.Assemble(ctx, node.spec, parts, node.stagingDir)
	default:
		return fmt.Errorf("internal error: package %q has no executable source kind", node.name)
	}

	// Non-composite packages embed their service descriptor here; the
	// assembler does it for composites.
	if node.spec.Service != nil {
		if err := e.deps.Assembler.EmitService(node.stagingDir, node.spec.Service); err != nil {
			return err
		}
	}
	return nil
}
