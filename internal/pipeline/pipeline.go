// Package pipeline feeds files from a build stream through the analyzer and
// decides which files go back into the stream.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"walker/internal/analyzer"
	"walker/internal/metrics"
)

// File is one entry of the stream.
type File struct {
	Path     string
	Base     string
	Contents []byte
}

// Rel returns Path relative to Base, or Path when that fails.
func (f File) Rel() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return f.Path
	}
	return rel
}

// Options configures a Pipeline.
type Options struct {
	// StopOnFirstRun keeps a file out of the output the first time it is
	// analyzed in a session.
	StopOnFirstRun bool
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{StopOnFirstRun: true}
}

// Pipeline serializes analyzer calls and re-reads dependents from disk.
type Pipeline struct {
	mu       sync.Mutex
	analyzer *analyzer.Analyzer
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
}

// New creates a Pipeline around a. m may be nil.
func New(a *analyzer.Analyzer, opts Options, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		analyzer: a,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Process analyzes f and returns the files to emit: the dependents of f
// re-read from disk (only once f has been seen before), then f itself
// unless this is its first run and StopOnFirstRun is set.
func (p *Pipeline) Process(ctx context.Context, f File) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(f.Path) {
		return nil, fmt.Errorf("pipeline needs an absolute path, got %q", f.Path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	firstRun := p.analyzer.IsUnprocessed(f.Path)
	start := time.Now()
	res := p.analyzer.Analyze(string(f.Contents), f.Path, f.Base)
	p.metrics.ObserveAnalysis(filepath.Ext(f.Path), firstRun, res.Skipped, len(res.Unresolved), time.Since(start))
	p.metrics.ObserveGraph(p.analyzer.State().Graph.Stats())

	var out []File
	if !firstRun {
		for _, dep := range res.Dependents {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			base, ok := p.analyzer.FileBase(dep)
			if !ok {
				p.logger.Warn("Dependent wasn't analyzed the first time, skipping", "file", dep, "changed", f.Path)
				continue
			}
			contents, err := p.readFile(dep)
			if err != nil {
				p.logger.Warn("Failed to re-read dependent", "file", dep, "error", err)
				if p.metrics != nil {
					p.metrics.DependentReadErrors.Inc()
				}
				continue
			}
			out = append(out, File{Path: dep, Base: base, Contents: contents})
		}
		if p.metrics != nil {
			p.metrics.InvalidationsTotal.Add(float64(len(out)))
		}
	}

	if !(firstRun && p.opts.StopOnFirstRun) {
		out = append(out, f)
	}
	p.logger.Debug("Processed file", "file", f.Path, "first_run", firstRun, "emitted", len(out))
	return out, nil
}

// ProcessPath reads path from disk and processes it with base.
func (p *Pipeline) ProcessPath(ctx context.Context, path, base string) ([]File, error) {
	contents, err := p.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Process(ctx, File{Path: path, Base: base, Contents: contents})
}

// Analyzer returns the wrapped analyzer. Callers must not analyze through
// it while the pipeline is in use.
func (p *Pipeline) Analyzer() *analyzer.Analyzer {
	return p.analyzer
}

// Snapshot runs fn while holding the writer lock, so fn sees a consistent
// session state.
func (p *Pipeline) Snapshot(fn func(*analyzer.State) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.analyzer.State())
}
