// Package strategy holds the pieces shared by finder and resolver strategies:
// a name to factory registry, chain entries and option decoding.
package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	werrors "walker/internal/errors"
)

// Spec is one entry of a strategy chain as it appears in configuration.
type Spec struct {
	Name   string                 `json:"name" mapstructure:"name" yaml:"name" toml:"name"`
	Config map[string]interface{} `json:"config,omitempty" mapstructure:"config" yaml:"config,omitempty" toml:"config,omitempty"`
}

// Factory builds a strategy instance from its raw option map.
type Factory[T any] func(options map[string]interface{}, logger *slog.Logger) (T, error)

// Registry maps strategy names to factories. It is filled during package
// init and only read afterwards.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry. kind is used in error messages.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a factory under name. A second registration of the same
// name is rejected.
func (r *Registry[T]) Register(name string, factory Factory[T]) error {
	if name == "" {
		return werrors.Newf(werrors.StrategyUnnamed, "cannot register a %s without a name", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return werrors.Newf(werrors.StrategyDuplicate, "%s %q is already registered", r.kind, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for use from init functions.
func (r *Registry[T]) MustRegister(name string, factory Factory[T]) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create instantiates the strategy named by spec with spec.Config as options.
func (r *Registry[T]) Create(spec Spec, logger *slog.Logger) (T, error) {
	var zero T
	if spec.Name == "" {
		return zero, werrors.Newf(werrors.StrategyUnnamed, "a %s must be referenced by name", r.kind)
	}
	r.mu.RLock()
	factory, ok := r.factories[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return zero, werrors.Newf(werrors.StrategyUnknown, "no %s registered as %q (known: %s)",
			r.kind, spec.Name, strings.Join(r.Names(), ", "))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	inst, err := factory(spec.Config, logger.With("strategy", spec.Name))
	if err != nil {
		return zero, fmt.Errorf("%s %q: %w", r.kind, spec.Name, err)
	}
	return inst, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeOptions decodes a raw option map onto out, which must be a pointer
// to a struct already holding the strategy defaults. Keys absent from
// options leave the default in place; slices given in options replace the
// default slice. Key matching is case-insensitive, and a single value is
// accepted where a list is expected.
func DecodeOptions(options map[string]interface{}, out interface{}) error {
	if len(options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return werrors.New(werrors.InternalError, "building option decoder", err)
	}
	if err := decoder.Decode(options); err != nil {
		return werrors.New(werrors.OptionInvalid, "decoding strategy options", err)
	}
	return nil
}

// MergeOptions deep-merges override onto base and returns a new map.
// Nested maps merge recursively; every other value in override, slices
// included, replaces the base value. Neither input is modified.
func MergeOptions(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range override {
		key := k
		// Option keys are matched case-insensitively when decoded; merge the
		// same way so "basepaths" from viper overrides "basePaths".
		for existing := range out {
			if existing != k && strings.EqualFold(existing, k) {
				key = existing
				break
			}
		}
		if om, ok := asMap(v); ok {
			if bm, ok := asMap(out[key]); ok {
				out[key] = MergeOptions(bm, om)
				continue
			}
		}
		out[key] = copyValue(v)
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func copyValue(v interface{}) interface{} {
	if m, ok := asMap(v); ok {
		return MergeOptions(nil, m)
	}
	switch s := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = copyValue(s[i])
		}
		return out
	case []string:
		return append([]string(nil), s...)
	}
	return v
}
