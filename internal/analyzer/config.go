package analyzer

import (
	"sort"
	"strings"

	werrors "walker/internal/errors"
	"walker/internal/strategy"
)

const (
	stylusImportPattern  = `^\s*(?:@import|@require)\s+['"](.+?)['"](?:$|;)`
	coffeeRequirePattern = `^\s*(?:.+?\s*[=:({;])?\s*require\s*(?:\()?['"]([^'"]+)['"](?:\))?`
	jsRequirePattern     = `^\s*(?:.+?\s*[=:({;])?\s*require\s*\(?['"]([^'"]+)['"]\)?`
)

// Config maps file extensions to ordered strategy chains. Keys may be
// written with or without the leading dot.
type Config struct {
	Finders   map[string][]strategy.Spec `json:"finders" mapstructure:"finders" yaml:"finders" toml:"finders"`
	Resolvers map[string][]strategy.Spec `json:"resolvers" mapstructure:"resolvers" yaml:"resolvers" toml:"resolvers"`
}

// DefaultConfig returns the built-in chains for Stylus, CoffeeScript and
// JavaScript sources.
func DefaultConfig() Config {
	regex := func(pattern string, exclude ...string) []strategy.Spec {
		cfg := map[string]interface{}{"pattern": pattern}
		if len(exclude) > 0 {
			cfg["exclude"] = exclude
		}
		return []strategy.Spec{{Name: "regex", Config: cfg}}
	}
	resolver := func(name string, exts ...string) []strategy.Spec {
		return []strategy.Spec{{Name: name, Config: map[string]interface{}{"extensions": exts}}}
	}

	return Config{
		Finders: map[string][]strategy.Spec{
			".styl":   regex(stylusImportPattern, "nib"),
			".coffee": regex(coffeeRequirePattern),
			".cjsx":   regex(coffeeRequirePattern),
			".js":     regex(jsRequirePattern),
			".jsx":    regex(jsRequirePattern),
		},
		Resolvers: map[string][]strategy.Spec{
			".styl":   resolver("basic", "styl", "css"),
			".coffee": resolver("common-js", "coffee", "js", "cjsx", "jsx"),
			".cjsx":   resolver("common-js", "coffee", "js", "cjsx", "jsx"),
			".js":     resolver("common-js", "js", "jsx"),
			".jsx":    resolver("common-js", "js", "jsx"),
		},
	}
}

// NormalizeExt returns ext with exactly one leading dot.
func NormalizeExt(ext string) string {
	return "." + strings.TrimLeft(ext, ".")
}

// MergeConfig overlays override onto base, extension by extension. Within
// an extension, override entry i merges into base entry i: a missing name
// keeps the base name and option maps deep-merge with override winning.
// Entries past the end of the base chain are appended and must be named.
func MergeConfig(base, override Config) (Config, error) {
	finders, err := mergeChains("finders", base.Finders, override.Finders)
	if err != nil {
		return Config{}, err
	}
	resolvers, err := mergeChains("resolvers", base.Resolvers, override.Resolvers)
	if err != nil {
		return Config{}, err
	}
	return Config{Finders: finders, Resolvers: resolvers}, nil
}

func mergeChains(kind string, base, override map[string][]strategy.Spec) (map[string][]strategy.Spec, error) {
	out := make(map[string][]strategy.Spec, len(base)+len(override))
	for ext, chain := range base {
		key := NormalizeExt(ext)
		out[key] = mergeChain(out[key], chain)
	}

	exts := make([]string, 0, len(override))
	for ext := range override {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		key := NormalizeExt(ext)
		merged := mergeChain(out[key], override[ext])
		for i, spec := range merged {
			if spec.Name == "" {
				return nil, werrors.Newf(werrors.StrategyUnnamed,
					"%s entry %d for %s has no name and no default to inherit one from", kind, i, key)
			}
		}
		out[key] = merged
	}
	return out, nil
}

func mergeChain(base, override []strategy.Spec) []strategy.Spec {
	n := len(base)
	if len(override) > n {
		n = len(override)
	}
	out := make([]strategy.Spec, n)
	for i := range out {
		var b, o strategy.Spec
		if i < len(base) {
			b = base[i]
		}
		if i < len(override) {
			o = override[i]
		}
		name := b.Name
		if o.Name != "" {
			name = o.Name
		}
		out[i] = strategy.Spec{Name: name, Config: strategy.MergeOptions(b.Config, o.Config)}
	}
	return out
}
