package resolvers

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"walker/internal/strategy"
)

// BasicName is the registry name of the plain filesystem resolver.
const BasicName = "basic"

// maxIndexDepth bounds how many directory index hops one resolution may take.
const maxIndexDepth = 8

func init() {
	Registry.MustRegister(BasicName, func(options map[string]interface{}, logger *slog.Logger) (Resolver, error) {
		opts := DefaultOptions()
		if err := strategy.DecodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewBasic(opts, logger)
	})
}

// Options are understood by every resolver.
type Options struct {
	// BasePaths are searched for absolute and not-explicit specifiers.
	// Relative entries are taken from the working directory.
	BasePaths []string `mapstructure:"basePaths" json:"basePaths"`
	// Extensions are appended, in order, to every candidate.
	Extensions []string `mapstructure:"extensions" json:"extensions"`
	// IndexFile is resolved inside a directory that a specifier points at.
	IndexFile string `mapstructure:"indexFile" json:"indexFile"`
	// ExistingFilesOnly disables synthesizing a path when no candidate exists.
	ExistingFilesOnly bool `mapstructure:"existingFilesOnly" json:"existingFilesOnly"`
	// BareFirst tries the extension-less candidate before the extensions.
	BareFirst bool `mapstructure:"bareFirst" json:"bareFirst"`
}

// DefaultOptions returns the resolver defaults.
func DefaultOptions() Options {
	return Options{
		BasePaths:         []string{},
		Extensions:        []string{},
		IndexFile:         "index",
		ExistingFilesOnly: true,
	}
}

// indexFunc names the specifier to try when spec resolved to directory dir.
type indexFunc func(dir, spec string) string

// Basic resolves specifiers against the includer's directory and the
// configured base paths, guessing extensions and directory index files.
type Basic struct {
	opts       Options
	basePaths  []string
	extensions []string
	index      indexFunc
	logger     *slog.Logger
}

// NewBasic creates a Basic resolver. Base paths are made absolute once here.
func NewBasic(opts Options, logger *slog.Logger) (*Basic, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Basic{
		opts:   opts,
		logger: logger,
	}
	for _, p := range opts.BasePaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		b.basePaths = append(b.basePaths, abs)
	}
	for _, ext := range opts.Extensions {
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			b.extensions = append(b.extensions, ext)
		}
	}
	if b.opts.IndexFile == "" {
		b.opts.IndexFile = "index"
	}
	b.index = b.indexFile
	return b, nil
}

// Options returns the effective options.
func (b *Basic) Options() Options {
	return b.opts
}

// Resolve implements Resolver.
func (b *Basic) Resolve(includerPath, specifier string) (string, bool) {
	return b.resolve(includerPath, specifier, nil)
}

// resolve tries candidates for spec. extraBases are searched after the
// configured base paths. When the winner is a directory, its index
// specifier is resolved next, up to maxIndexDepth times.
func (b *Basic) resolve(includerPath, spec string, extraBases []string) (string, bool) {
	visited := make(map[string]struct{})
	for depth := 0; depth < maxIndexDepth; depth++ {
		candidates := b.Candidates(includerPath, spec, extraBases)
		b.logger.Debug("Resolving specifier", "specifier", spec, "candidates", len(candidates))

		found, info := firstExisting(candidates)
		if found == "" {
			if !b.opts.ExistingFilesOnly {
				if p := b.synthesize(includerPath, spec, extraBases); p != "" {
					b.logger.Debug("Specifier not on disk, using best guess", "specifier", spec, "path", p)
					return p, true
				}
			}
			b.logger.Warn("Specifier could not be found", "specifier", spec, "includer", includerPath)
			return "", false
		}
		if !info.IsDir() {
			b.logger.Info("Specifier resolved", "specifier", spec, "path", found)
			return found, true
		}
		if _, seen := visited[found]; seen {
			b.logger.Warn("Directory index loops back", "specifier", spec, "dir", found)
			return "", false
		}
		visited[found] = struct{}{}
		b.logger.Debug("Resolved to a directory, guessing index file", "dir", found)
		spec = b.index(found, spec)
	}
	b.logger.Warn("Too many directory index hops", "specifier", spec, "includer", includerPath)
	return "", false
}

// Candidates lists every path tried for spec, in lookup order and without
// repeats: the includer-relative path, then one per base path (the
// includer's directory first), each expanded with the configured
// extensions and the bare name.
func (b *Basic) Candidates(includerPath, spec string, extraBases []string) []string {
	return b.expand(b.basesFor(includerPath, spec, extraBases))
}

func (b *Basic) basesFor(includerPath, spec string, extraBases []string) []string {
	dir := filepath.Dir(includerPath)
	kind := Classify(spec)

	var paths []string
	if kind == Relative || kind == NotExplicit {
		paths = append(paths, filepath.Join(dir, spec))
	}
	if kind == Absolute || kind == NotExplicit {
		rel := strings.TrimPrefix(spec, "/")
		roots := make([]string, 0, 1+len(b.basePaths)+len(extraBases))
		roots = append(roots, dir)
		roots = append(roots, b.basePaths...)
		roots = append(roots, extraBases...)
		for _, root := range roots {
			paths = append(paths, filepath.Join(root, rel))
		}
	}
	return paths
}

func (b *Basic) expand(paths []string) []string {
	seen := make(map[string]struct{}, len(paths)*(len(b.extensions)+1))
	out := make([]string, 0, len(paths)*(len(b.extensions)+1))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range paths {
		if b.opts.BareFirst {
			add(p)
		}
		for _, ext := range b.extensions {
			add(p + "." + ext)
		}
		if !b.opts.BareFirst {
			add(p)
		}
	}
	return out
}

// synthesize builds the best-effort path for a missing target: the first
// base candidate, with the first extension appended unless it already
// carries one of the configured extensions.
func (b *Basic) synthesize(includerPath, spec string, extraBases []string) string {
	paths := b.basesFor(includerPath, spec, extraBases)
	if len(paths) == 0 {
		return ""
	}
	p := paths[0]
	if len(b.extensions) == 0 || b.hasExtension(p) {
		return p
	}
	return p + "." + b.extensions[0]
}

func (b *Basic) hasExtension(p string) bool {
	ext := strings.TrimPrefix(filepath.Ext(p), ".")
	if ext == "" {
		return false
	}
	for _, e := range b.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (b *Basic) indexFile(_ string, spec string) string {
	return strings.TrimSuffix(spec, "/") + "/" + b.opts.IndexFile
}

func firstExisting(paths []string) (string, os.FileInfo) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			return p, info
		}
	}
	return "", nil
}
