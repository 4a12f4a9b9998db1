// Package resolvers turns an include specifier into a file on disk.
package resolvers

import (
	"strings"

	"walker/internal/strategy"
)

// Resolver maps (includer, specifier) to an absolute path. The boolean is
// false when nothing could be resolved.
type Resolver interface {
	Resolve(includerPath, specifier string) (string, bool)
}

// Registry holds every resolver strategy known to the process.
var Registry = strategy.NewRegistry[Resolver]("resolver")

// Kind classifies a specifier by how it is anchored.
type Kind int

const (
	// NotExplicit specifiers ("x", "lib/x") may be includer-relative or
	// relative to a base path.
	NotExplicit Kind = iota
	// Relative specifiers start with "./" or "../".
	Relative
	// Absolute specifiers start with "/" and are rooted at the base paths.
	Absolute
)

func (k Kind) String() string {
	switch k {
	case Relative:
		return "relative"
	case Absolute:
		return "absolute"
	default:
		return "not-explicit"
	}
}

// Classify returns the kind of specifier.
func Classify(specifier string) Kind {
	switch {
	case strings.HasPrefix(specifier, "/"):
		return Absolute
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		return Relative
	default:
		return NotExplicit
	}
}

// Chain runs resolvers in order. Each stage receives the path produced by
// the previous stage, or the original specifier while nothing has resolved
// yet. A stage that fails leaves the current path untouched.
type Chain []Resolver

// Resolve returns the final path and whether any stage resolved it. When no
// stage resolved, the original specifier is returned.
func (c Chain) Resolve(includerPath, specifier string) (string, bool) {
	current := specifier
	resolved := false
	for _, r := range c {
		if p, ok := r.Resolve(includerPath, current); ok {
			current = p
			resolved = true
		}
	}
	return current, resolved
}
