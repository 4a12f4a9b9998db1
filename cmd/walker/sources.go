package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"walker/internal/paths"
)

// sourceSet matches repo-relative paths against source globs minus ignore
// globs.
type sourceSet struct {
	root    string
	include []string
	ignore  []string
}

func newSourceSet(root string, include, ignore []string) (*sourceSet, error) {
	s := &sourceSet{root: root}
	for _, p := range include {
		if filepath.IsAbs(p) {
			rel, err := filepath.Rel(root, p)
			if err != nil || strings.HasPrefix(rel, "..") {
				return nil, fmt.Errorf("source pattern %q is outside %s", p, root)
			}
			p = rel
		}
		p = filepath.ToSlash(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid source pattern %q", p)
		}
		s.include = append(s.include, p)
	}
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
		s.ignore = append(s.ignore, p)
	}
	return s, nil
}

// Match reports whether the absolute path is a source file.
func (s *sourceSet) Match(path string) bool {
	if !paths.IsWithinRepo(path, s.root) {
		return false
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return s.matchRel(filepath.ToSlash(rel))
}

func (s *sourceSet) matchRel(rel string) bool {
	for _, p := range s.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Expand returns the absolute paths of all matching files, sorted.
func (s *sourceSet) Expand() ([]string, error) {
	fsys := os.DirFS(s.root)
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		for _, rel := range matches {
			if _, dup := seen[rel]; dup || !s.matchRel(rel) {
				continue
			}
			seen[rel] = struct{}{}
			out = append(out, filepath.Join(s.root, filepath.FromSlash(rel)))
		}
	}
	sort.Strings(out)
	return out, nil
}

// readSources reads files concurrently. Results are indexed like files.
func readSources(ctx context.Context, files []string) ([][]byte, error) {
	contents := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", f, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}
