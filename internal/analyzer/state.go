package analyzer

import (
	"sort"

	"github.com/google/uuid"

	"walker/internal/depgraph"
)

// State is everything one build session accumulates: the dependency graph,
// the files analyzed so far, the base directory each was analyzed with and
// the specifiers no resolver could place. Start a new session with a new
// State.
type State struct {
	SessionID  string
	Graph      *depgraph.Graph
	processed  map[string]struct{}
	bases      map[string]string
	unresolved map[string]map[string]struct{}
}

// NewState creates an empty session.
func NewState() *State {
	return &State{
		SessionID:  uuid.NewString(),
		Graph:      depgraph.New(),
		processed:  make(map[string]struct{}),
		bases:      make(map[string]string),
		unresolved: make(map[string]map[string]struct{}),
	}
}

// RestoreState rebuilds a session from saved edges, bases and unresolved
// specifiers. Every file with a recorded base counts as processed.
func RestoreState(sessionID string, edges []depgraph.Edge, bases map[string]string, unresolved map[string][]string) *State {
	s := &State{
		SessionID:  sessionID,
		Graph:      depgraph.FromEdges(edges),
		processed:  make(map[string]struct{}, len(bases)),
		bases:      make(map[string]string, len(bases)),
		unresolved: make(map[string]map[string]struct{}, len(unresolved)),
	}
	for f, b := range bases {
		s.processed[f] = struct{}{}
		s.bases[f] = b
	}
	for f, specs := range unresolved {
		s.SetUnresolved(f, specs)
	}
	return s
}

// SetUnresolved replaces the unresolved specifiers recorded for file.
func (s *State) SetUnresolved(file string, specs []string) {
	if len(specs) == 0 {
		delete(s.unresolved, file)
		return
	}
	set := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		set[spec] = struct{}{}
	}
	s.unresolved[file] = set
}

// IsUnresolved reports whether file's edge to dep is a raw specifier.
func (s *State) IsUnresolved(file, dep string) bool {
	_, ok := s.unresolved[file][dep]
	return ok
}

// Unresolved returns the unresolved specifiers of every file, each list
// sorted.
func (s *State) Unresolved() map[string][]string {
	out := make(map[string][]string, len(s.unresolved))
	for f, set := range s.unresolved {
		specs := make([]string, 0, len(set))
		for spec := range set {
			specs = append(specs, spec)
		}
		sort.Strings(specs)
		out[f] = specs
	}
	return out
}

// MarkProcessed records that file has been analyzed with base.
func (s *State) MarkProcessed(file, base string) {
	s.processed[file] = struct{}{}
	s.bases[file] = base
}

// IsProcessed reports whether file was analyzed in this session.
func (s *State) IsProcessed(file string) bool {
	_, ok := s.processed[file]
	return ok
}

// Base returns the base directory file was analyzed with.
func (s *State) Base(file string) (string, bool) {
	b, ok := s.bases[file]
	return b, ok
}

// Bases returns a copy of the file to base directory map.
func (s *State) Bases() map[string]string {
	out := make(map[string]string, len(s.bases))
	for f, b := range s.bases {
		out[f] = b
	}
	return out
}

// ProcessedFiles returns the analyzed files, sorted.
func (s *State) ProcessedFiles() []string {
	out := make([]string, 0, len(s.processed))
	for f := range s.processed {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
