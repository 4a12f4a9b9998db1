// Package analyzer runs the finder and resolver chains for a file and keeps
// the session graph up to date.
package analyzer

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"walker/internal/finders"
	"walker/internal/resolvers"
)

// Result is the outcome of analyzing one file.
type Result struct {
	File string `json:"file"`
	// Dependencies is the committed edge set: resolved paths, plus the raw
	// form of any specifier that could not be resolved.
	Dependencies []string `json:"dependencies"`
	// Unresolved lists the specifiers no resolver could place.
	Unresolved []string `json:"unresolved,omitempty"`
	// Dependents are the files to reprocess because of this file.
	Dependents []string `json:"dependents"`
	// FirstRun is true when the file had not been analyzed in this session.
	FirstRun bool `json:"firstRun"`
	// Skipped is true when no finder is registered for the file's extension.
	Skipped bool `json:"skipped,omitempty"`
}

// Analyzer dispatches files to strategy chains by extension.
type Analyzer struct {
	state     *State
	finders   map[string][]finders.Finder
	resolvers map[string]resolvers.Chain
	logger    *slog.Logger
}

// New builds every strategy named in cfg. Any unknown strategy or bad
// option fails construction. A nil state starts a new session.
func New(cfg Config, state *State, logger *slog.Logger) (*Analyzer, error) {
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &Analyzer{
		state:     state,
		finders:   make(map[string][]finders.Finder),
		resolvers: make(map[string]resolvers.Chain),
		logger:    logger,
	}

	for _, ext := range sortedKeys(cfg.Finders) {
		key := NormalizeExt(ext)
		for i, spec := range cfg.Finders[ext] {
			f, err := finders.Registry.Create(spec, logger)
			if err != nil {
				return nil, fmt.Errorf("finder %d for %s: %w", i, key, err)
			}
			a.finders[key] = append(a.finders[key], f)
		}
	}
	for _, ext := range sortedKeys(cfg.Resolvers) {
		key := NormalizeExt(ext)
		for i, spec := range cfg.Resolvers[ext] {
			r, err := resolvers.Registry.Create(spec, logger)
			if err != nil {
				return nil, fmt.Errorf("resolver %d for %s: %w", i, key, err)
			}
			a.resolvers[key] = append(a.resolvers[key], r)
		}
	}
	for ext := range a.finders {
		if len(a.resolvers[ext]) == 0 {
			logger.Warn("Finder configured without resolvers, specifiers will stay unresolved", "ext", ext)
		}
	}
	return a, nil
}

// Analyze finds and resolves the dependencies of filePath, commits them to
// the graph, records baseDir for the file and returns the files that
// transitively depend on it.
func (a *Analyzer) Analyze(content, filePath, baseDir string) *Result {
	ext := filepath.Ext(filePath)
	res := &Result{File: filePath, FirstRun: !a.state.IsProcessed(filePath)}

	chain, ok := a.finders[ext]
	if !ok {
		a.logger.Info("No finder for extension, treating file as a leaf", "file", filePath, "ext", ext)
		a.state.MarkProcessed(filePath, baseDir)
		a.state.SetUnresolved(filePath, nil)
		res.Skipped = true
		return res
	}

	var specs []string
	for _, f := range chain {
		specs = append(specs, f.Find(content, filePath)...)
	}

	resolveChain := a.resolvers[ext]
	deps := make([]string, 0, len(specs))
	for _, spec := range specs {
		p, ok := resolveChain.Resolve(filePath, spec)
		if !ok {
			res.Unresolved = append(res.Unresolved, spec)
		}
		deps = append(deps, p)
	}

	a.state.Graph.UpdateDependencies(filePath, deps)
	a.state.SetUnresolved(filePath, res.Unresolved)
	a.state.MarkProcessed(filePath, baseDir)

	res.Dependencies = a.state.Graph.Dependencies(filePath)
	res.Dependents = a.state.Graph.Dependents(filePath)
	a.logger.Debug("Analyzed file",
		"file", filePath,
		"dependencies", len(res.Dependencies),
		"unresolved", len(res.Unresolved),
		"dependents", len(res.Dependents))
	return res
}

// State returns the session state the analyzer writes to.
func (a *Analyzer) State() *State {
	return a.state
}

// IsUnprocessed reports whether file has not been analyzed yet.
func (a *Analyzer) IsUnprocessed(file string) bool {
	return !a.state.IsProcessed(file)
}

// FileBase returns the base directory recorded for file.
func (a *Analyzer) FileBase(file string) (string, bool) {
	return a.state.Base(file)
}

// Dependents returns the files that transitively depend on file.
func (a *Analyzer) Dependents(file string) []string {
	return a.state.Graph.Dependents(file)
}

// Dependencies returns the edges last committed for file.
func (a *Analyzer) Dependencies(file string) []string {
	return a.state.Graph.Dependencies(file)
}

// Extensions lists the extensions that have a finder chain.
func (a *Analyzer) Extensions() []string {
	return sortedKeys(a.finders)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
