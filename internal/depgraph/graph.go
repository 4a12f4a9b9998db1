// Package depgraph keeps the reverse include graph of a session: for every
// dependency, the files that currently include it.
package depgraph

import (
	"sort"
)

// Edge is one include relation: File includes Dependency.
type Edge struct {
	File       string `json:"file"`
	Dependency string `json:"dependency"`
}

// Stats summarizes the graph.
type Stats struct {
	Files        int `json:"files"`
	Dependencies int `json:"dependencies"`
	Edges        int `json:"edges"`
}

// Graph is a reverse dependency graph. It reflects only the latest
// dependency set of each file. A Graph is not safe for concurrent use;
// callers serialize writes.
type Graph struct {
	dependents   map[string]map[string]struct{} // dependency -> files including it
	dependencies map[string][]string            // file -> dependencies, as last committed
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		dependents:   make(map[string]map[string]struct{}),
		dependencies: make(map[string][]string),
	}
}

// UpdateDependencies makes deps the complete dependency set of file. file
// is added as a dependent of every member of deps and removed from every
// dependency it no longer includes. Keys left with no dependents are pruned.
func (g *Graph) UpdateDependencies(file string, deps []string) {
	next := make(map[string]struct{}, len(deps))
	ordered := make([]string, 0, len(deps))
	for _, d := range deps {
		if _, dup := next[d]; dup {
			continue
		}
		next[d] = struct{}{}
		ordered = append(ordered, d)
	}

	for _, old := range g.dependencies[file] {
		if _, keep := next[old]; keep {
			continue
		}
		if set, ok := g.dependents[old]; ok {
			delete(set, file)
			if len(set) == 0 {
				delete(g.dependents, old)
			}
		}
	}

	for _, d := range ordered {
		set, ok := g.dependents[d]
		if !ok {
			set = make(map[string]struct{})
			g.dependents[d] = set
		}
		set[file] = struct{}{}
	}

	if len(ordered) == 0 {
		delete(g.dependencies, file)
		return
	}
	g.dependencies[file] = ordered
}

// Remove drops file and all of its outgoing edges. Edges pointing at file
// stay, so its dependents are still found if it comes back.
func (g *Graph) Remove(file string) {
	g.UpdateDependencies(file, nil)
}

// DirectDependents returns the files that include dep, sorted.
func (g *Graph) DirectDependents(dep string) []string {
	set := g.dependents[dep]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Dependents returns every file that depends on file directly or through
// other files. Results are in breadth-first order, nearest first, sorted
// within each level. file itself is never part of the result, even when
// it sits on a cycle.
func (g *Graph) Dependents(file string) []string {
	visited := map[string]struct{}{file: {}}
	var result []string

	level := g.DirectDependents(file)
	for len(level) > 0 {
		var next []string
		for _, f := range level {
			if _, seen := visited[f]; seen {
				continue
			}
			visited[f] = struct{}{}
			result = append(result, f)
			next = append(next, g.DirectDependents(f)...)
		}
		sort.Strings(next)
		level = next
	}
	return result
}

// IsDependent reports whether file directly includes dep.
func (g *Graph) IsDependent(file, dep string) bool {
	_, ok := g.dependents[dep][file]
	return ok
}

// Dependencies returns the dependency set last committed for file, in
// commit order.
func (g *Graph) Dependencies(file string) []string {
	deps := g.dependencies[file]
	if len(deps) == 0 {
		return nil
	}
	return append([]string(nil), deps...)
}

// Files returns every file with at least one dependency, sorted.
func (g *Graph) Files() []string {
	out := make([]string, 0, len(g.dependencies))
	for f := range g.dependencies {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge, sorted by file then by commit order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, f := range g.Files() {
		for _, d := range g.dependencies[f] {
			edges = append(edges, Edge{File: f, Dependency: d})
		}
	}
	return edges
}

// Stats returns node and edge counts.
func (g *Graph) Stats() Stats {
	s := Stats{Files: len(g.dependencies), Dependencies: len(g.dependents)}
	for _, deps := range g.dependencies {
		s.Edges += len(deps)
	}
	return s
}

// FromEdges rebuilds a graph from a list of edges.
func FromEdges(edges []Edge) *Graph {
	byFile := make(map[string][]string)
	var order []string
	for _, e := range edges {
		if _, ok := byFile[e.File]; !ok {
			order = append(order, e.File)
		}
		byFile[e.File] = append(byFile[e.File], e.Dependency)
	}
	g := New()
	for _, f := range order {
		g.UpdateDependencies(f, byFile[f])
	}
	return g
}
