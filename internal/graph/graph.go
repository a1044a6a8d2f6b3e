// Package graph derives the package dependency graph from a validated
// manifest model: one node per package, one directed edge per composite
// part relationship. The graph is read-only after Build and safe for
// concurrent use without locking.
package graph

import (
	"fmt"

	"github.com/vk/packforgego/internal/config"
)

// node is a single vertex. Dependency slices preserve manifest
// declaration order so traversals stay deterministic.
type node struct {
	name       string
	deps       []string // parts this package is assembled from
	dependents []string // composites that include this package
}

// Graph is the dependency graph over a manifest's packages.
type Graph struct {
	nodes map[string]*node
	// order is every package name in manifest declaration order. It is the
	// tie-breaker for the topological sort.
	order []string
}

// Build constructs and validates the graph for a model. It fails with a
// *CycleError if the composite relationships are circular.
func Build(model *config.Model) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node, len(model.Packages))}

	for _, spec := range model.Packages {
		g.nodes[spec.Name] = &node{name: spec.Name}
		g.order = append(g.order, spec.Name)
	}
	for _, spec := range model.Packages {
		composite, ok := spec.Source.(*config.CompositeSource)
		if !ok {
			continue
		}
		n := g.nodes[spec.Name]
		for _, part := range composite.Parts {
			if _, ok := g.nodes[part]; !ok {
				// Validation catches this first; guard against misuse.
				return nil, fmt.Errorf("composite %q references unknown package %q", spec.Name, part)
			}
			n.deps = append(n.deps, part)
			g.nodes[part].dependents = append(g.nodes[part].dependents, spec.Name)
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Dependencies returns the parts the named package depends on, in
// declared order. The slice must not be mutated.
func (g *Graph) Dependencies(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return n.deps
	}
	return nil
}

// Dependents returns the composites that include the named package.
func (g *Graph) Dependents(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return n.dependents
	}
	return nil
}

// Names returns every package name in manifest declaration order.
func (g *Graph) Names() []string {
	return g.order
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Closure returns the set of the given packages plus every package
// transitively reachable through composite parts. It fails if a requested
// name is not in the graph.
func (g *Graph) Closure(names []string) (map[string]bool, error) {
	needed := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		n, ok := g.nodes[name]
		if !ok {
			return fmt.Errorf("unknown package %q", name)
		}
		if needed[name] {
			return nil
		}
		needed[name] = true
		for _, dep := range n.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return needed, nil
}
