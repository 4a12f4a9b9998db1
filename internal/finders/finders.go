// Package finders extracts raw include specifiers from file content.
package finders

import (
	"walker/internal/strategy"
)

// Finder returns the specifiers a file includes, as written in the source.
// filePath is only used for diagnostics.
type Finder interface {
	Find(content, filePath string) []string
}

// Registry holds every finder strategy known to the process.
var Registry = strategy.NewRegistry[Finder]("finder")
