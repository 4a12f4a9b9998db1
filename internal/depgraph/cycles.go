package depgraph

import "sort"

// Cycles returns the include cycles closed by back edges of a depth-first
// walk in path order, each as the files on it starting from the smallest
// path. Every strongly connected component that contains a cycle yields at
// least one entry; cycles that only close through a finished file are not
// listed separately. A file including itself is a cycle of one.
func (g *Graph) Cycles() [][]string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var stack []string
	seen := make(map[string]struct{})
	var cycles [][]string

	var visit func(string)
	visit = func(f string) {
		state[f] = onStack
		stack = append(stack, f)
		for _, d := range g.dependencies[f] {
			switch state[d] {
			case unvisited:
				visit(d)
			case onStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == d {
						cycle := canonicalCycle(stack[i:])
						key := cycleKey(cycle)
						if _, dup := seen[key]; !dup {
							seen[key] = struct{}{}
							cycles = append(cycles, cycle)
						}
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[f] = done
	}

	for _, f := range g.Files() {
		if state[f] == unvisited {
			visit(f)
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycleKey(cycles[i]) < cycleKey(cycles[j]) })
	return cycles
}

// canonicalCycle rotates a cycle so it starts at its smallest member.
func canonicalCycle(path []string) []string {
	start := 0
	for i := range path {
		if path[i] < path[start] {
			start = i
		}
	}
	out := make([]string, 0, len(path))
	out = append(out, path[start:]...)
	out = append(out, path[:start]...)
	return out
}

func cycleKey(cycle []string) string {
	key := ""
	for _, f := range cycle {
		key += f + "\x00"
	}
	return key
}
