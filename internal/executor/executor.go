package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/packforgego/internal/archive"
	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
	"github.com/vk/packforgego/internal/graph"
)

// Options tune a run.
type Options struct {
	// Workers is the worker pool size. Defaults to the available
	// hardware concurrency.
	Workers int
	// StagingRoot is the scratch directory owning one subdirectory per
	// package output tree for the duration of the run.
	StagingRoot string
	// Targets are the requested top-level packages; these are the ones
	// archived. Empty means every package in the manifest.
	Targets []string
}

// runNode is the scheduling view of one package. The counter and once
// guard mirror the state table; bundle and archiveErr are written only
// by the worker that owns the node and read after the pool drains.
type runNode struct {
	name       string
	spec       *config.PackageSpec
	stagingDir string

	depCount atomic.Int32
	skipOnce sync.Once

	bundle     *archive.Bundle
	archiveErr error
}

// Executor drives one build run to completion.
type Executor struct {
	model *config.Model
	graph *graph.Graph
	deps  Deps
	opts  Options

	table   *stateTable
	nodes   map[string]*runNode
	targets map[string]bool
	ready   chan *runNode
	wg      sync.WaitGroup
}

// New creates an Executor for a validated model and its graph.
func New(model *config.Model, g *graph.Graph, deps Deps, opts Options) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Executor{
		model: model,
		graph: g,
		deps:  deps,
		opts:  opts,
	}
}

// Run executes every needed package action and archives the requested
// targets. The returned report always covers every scheduled package;
// the error is the report's summary (nil on full success). Structural
// problems (an unknown target, an unusable staging root) fail before any
// action is dispatched.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	requested := e.opts.Targets
	if len(requested) == 0 {
		requested = e.model.Names()
	}
	needed, err := e.graph.Closure(requested)
	if err != nil {
		return nil, err
	}
	e.targets = make(map[string]bool, len(requested))
	for _, name := range requested {
		e.targets[name] = true
	}

	if err := os.MkdirAll(e.opts.StagingRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging root: %w", err)
	}

	// Declaration-order name list of everything scheduled this run.
	var names []string
	for _, name := range e.model.Names() {
		if needed[name] {
			names = append(names, name)
		}
	}
	e.table = newStateTable(names)
	e.nodes = make(map[string]*runNode, len(names))
	for _, name := range names {
		spec, _ := e.model.Get(name)
		n := &runNode{
			name:       name,
			spec:       spec,
			stagingDir: filepath.Join(e.opts.StagingRoot, name),
		}
		n.depCount.Store(int32(len(e.graph.Dependencies(name))))
		e.nodes[name] = n
	}

	// Buffered to the node count so completion events never block a worker.
	e.ready = make(chan *runNode, len(names))
	rootCount := 0
	for _, name := range e.graph.TopologicalOrder() {
		if n, ok := e.nodes[name]; ok && n.depCount.Load() == 0 {
			e.ready <- n
			rootCount++
		}
	}
	logger.Debug("Run scheduled.", "packages", len(names), "roots", rootCount, "workers", e.opts.Workers)

	e.wg.Add(len(names))
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(ctx, i)
	}
	e.wg.Wait()
	close(e.ready)
	logger.Debug("All package actions reached a terminal state.")

	report := &Report{Outcomes: make([]*Outcome, 0, len(names))}
	for _, name := range names {
		n := e.nodes[name]
		state, stateErr := e.table.get(name)
		report.Outcomes = append(report.Outcomes, &Outcome{
			Package:    name,
			State:      state,
			Err:        stateErr,
			Bundle:     n.bundle,
			ArchiveErr: n.archiveErr,
		})
	}
	return report, report.Err()
}
