package graph

// TopologicalOrder returns every package name ordered so that each
// composite appears after all of its parts. Ties are broken by manifest
// declaration order via repeated extraction of the first zero-in-degree
// node, which makes the order a pure function of the manifest.
func (g *Graph) TopologicalOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.deps)
	}

	order := make([]string, 0, len(g.nodes))
	emitted := make(map[string]bool, len(g.nodes))
	for len(order) < len(g.nodes) {
		for _, name := range g.order {
			if emitted[name] || indegree[name] != 0 {
				continue
			}
			emitted[name] = true
			order = append(order, name)
			for _, dependent := range g.nodes[name].dependents {
				indegree[dependent]--
			}
		}
	}
	return order
}
