package resolvers

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"walker/internal/strategy"
)

// CommonJSName is the registry name of the CommonJS resolver.
const CommonJSName = "common-js"

const manifestCacheSize = 512

func init() {
	Registry.MustRegister(CommonJSName, func(options map[string]interface{}, logger *slog.Logger) (Resolver, error) {
		opts := DefaultCommonJSOptions()
		if err := strategy.DecodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewCommonJS(opts, logger)
	})
}

// CommonJSOptions extends Options with module lookup settings.
type CommonJSOptions struct {
	Options `mapstructure:",squash"`
	// ManifestFile is the package descriptor read inside directories.
	ManifestFile string `mapstructure:"manifestFile" json:"manifestFile"`
	// ModuleDirectories are directory names (e.g. "node_modules") searched
	// in the includer's directory and each of its ancestors for bare
	// specifiers, after the configured base paths.
	ModuleDirectories []string `mapstructure:"moduleDirectories" json:"moduleDirectories,omitempty"`
}

// DefaultCommonJSOptions returns the CommonJS defaults.
func DefaultCommonJSOptions() CommonJSOptions {
	return CommonJSOptions{
		Options:      DefaultOptions(),
		ManifestFile: "package.json",
	}
}

type manifestEntry struct {
	modTime time.Time
	size    int64
	main    string
}

// CommonJS resolves require() style specifiers. Bare specifiers are rooted
// at the base paths, and a directory resolves to the "main" entry of its
// manifest before falling back to the index file.
type CommonJS struct {
	basic     *Basic
	opts      CommonJSOptions
	manifests *lru.Cache[string, manifestEntry]
	logger    *slog.Logger
}

// NewCommonJS creates a CommonJS resolver.
func NewCommonJS(opts CommonJSOptions, logger *slog.Logger) (*CommonJS, error) {
	basic, err := NewBasic(opts.Options, logger)
	if err != nil {
		return nil, err
	}
	if opts.ManifestFile == "" {
		opts.ManifestFile = "package.json"
	}
	cache, err := lru.New[string, manifestEntry](manifestCacheSize)
	if err != nil {
		return nil, err
	}
	r := &CommonJS{
		basic:     basic,
		opts:      opts,
		manifests: cache,
		logger:    basic.logger,
	}
	basic.index = r.indexFile
	return r, nil
}

// Resolve implements Resolver.
func (r *CommonJS) Resolve(includerPath, specifier string) (string, bool) {
	var extra []string
	if Classify(specifier) == NotExplicit {
		extra = r.moduleRoots(includerPath)
		specifier = "/" + specifier
	}
	return r.basic.resolve(includerPath, specifier, extra)
}

// moduleRoots lists existing module directories from the includer's
// directory up to the filesystem root, nearest first.
func (r *CommonJS) moduleRoots(includerPath string) []string {
	if len(r.opts.ModuleDirectories) == 0 {
		return nil
	}
	var roots []string
	dir := filepath.Dir(includerPath)
	for {
		for _, name := range r.opts.ModuleDirectories {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				roots = append(roots, candidate)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return roots
}

func (r *CommonJS) indexFile(dir, spec string) string {
	if main := r.manifestMain(dir); main != "" {
		return strings.TrimSuffix(spec, "/") + "/" + main
	}
	return r.basic.indexFile(dir, spec)
}

// manifestMain returns the "main" entry of dir's manifest, or "".
// Parsed manifests are cached until the file's size or mtime changes.
func (r *CommonJS) manifestMain(dir string) string {
	path := filepath.Join(dir, r.opts.ManifestFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	if e, ok := r.manifests.Get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.main
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("Failed to read manifest", "path", path, "error", err)
		return ""
	}
	var manifest struct {
		Main interface{} `json:"main"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		r.logger.Warn("Failed to parse manifest", "path", path, "error", err)
		return ""
	}
	main, _ := manifest.Main.(string)
	r.manifests.Add(path, manifestEntry{modTime: info.ModTime(), size: info.Size(), main: main})
	return main
}
