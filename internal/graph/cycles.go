package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a circular composite dependency. Cycle holds the
// member names in traversal order; the last element depends on the first.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s -> %s",
		strings.Join(e.Cycle, " -> "), e.Cycle[0])
}

// detectCycles runs a depth-first search with a visiting/visited color per
// node. Hitting a node already on the recursion stack means a cycle; the
// stack slice from that node's first occurrence is the full cycle path.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			for i, member := range stack {
				if member == name {
					cycle := make([]string, len(stack)-i)
					copy(cycle, stack[i:])
					return &CycleError{Cycle: cycle}
				}
			}
			// The node is marked visiting, so it must be on the stack.
			panic("graph: visiting node missing from traversal stack")
		}

		visiting[name] = true
		stack = append(stack, name)
		for _, dep := range g.nodes[name].deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(visiting, name)
		visited[name] = true
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
