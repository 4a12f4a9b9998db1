// Package paths locates the repository root and the .walker state directory
// and converts between absolute and repo-relative file paths.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// WalkerDirName is the per-repo state directory holding config and snapshots.
const WalkerDirName = ".walker"

// rootMarkers identify a repository root, checked in order at each level.
var rootMarkers = []string{WalkerDirName, ".git"}

// WalkerDir returns <repoRoot>/.walker.
func WalkerDir(repoRoot string) string {
	return filepath.Join(repoRoot, WalkerDirName)
}

// EnsureWalkerDir creates <repoRoot>/.walker when missing and returns it.
func EnsureWalkerDir(repoRoot string) (string, error) {
	dir := WalkerDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// FindRepoRoot walks up from start to the nearest directory containing
// .walker or .git. Without a marker the absolute start directory is the root.
func FindRepoRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// Abs anchors a relative path at repoRoot. Absolute paths are cleaned.
func Abs(path, repoRoot string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(repoRoot, path)
}

// CanonicalizePath returns absolutePath relative to repoRoot with forward
// slashes. Symlinks are resolved on both sides when the targets exist.
func CanonicalizePath(absolutePath, repoRoot string) (string, error) {
	resolved, err := evalIfExists(absolutePath)
	if err != nil {
		return "", err
	}
	root, err := evalIfExists(repoRoot)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func evalIfExists(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, nil
	}
	return resolved, err
}

// IsWithinRepo reports whether path lies inside repoRoot.
func IsWithinRepo(path, repoRoot string) bool {
	rel, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// Display renders path for output: repo-relative when it lies inside
// repoRoot, unchanged otherwise. Unresolved specifiers are not absolute and
// pass through as written.
func Display(path, repoRoot string) string {
	if repoRoot == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(repoRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
