// Package version holds build metadata for the walker binary.
package version

import "fmt"

// Overridden at build time:
// go build -ldflags "-X walker/internal/version.Version=0.5.0 -X walker/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const shortCommitLen = 7

// Info returns the version, with the abbreviated commit when one longer than
// the abbreviation is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > shortCommitLen {
		return fmt.Sprintf("%s (%s)", Version, Commit[:shortCommitLen])
	}
	return Version
}

// Full returns the multi-line text printed by `walker version`.
func Full() string {
	return fmt.Sprintf("walker version %s\nCommit: %s\nBuilt: %s", Version, Commit, BuildDate)
}
