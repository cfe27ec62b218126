// Package paths resolves and validates filesystem paths the engine is
// willing to operate on, the way the teacher's internal/paths package
// resolves and validates the beads directory.
package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrOutsideRoot is returned when a resolved path escapes the configured
// project root boundary.
var ErrOutsideRoot = fmt.Errorf("path escapes project root")

// sessionNameRE matches the multiplexer session-name grammar from §6.
var sessionNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidSessionName reports whether name is an acceptable multiplexer
// session name.
func ValidSessionName(name string) bool {
	return name != "" && sessionNameRE.MatchString(name)
}

// ResolveProjectDir resolves project (a path relative to root, or an
// absolute path) to an absolute directory guaranteed to lie inside root.
// Returns ErrOutsideRoot if it does not, preventing path traversal via
// "../" segments or absolute paths pointed elsewhere.
func ResolveProjectDir(root, project string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	absRoot = filepath.Clean(absRoot)

	var candidate string
	if filepath.IsAbs(project) {
		candidate = filepath.Clean(project)
	} else {
		candidate = filepath.Clean(filepath.Join(absRoot, project))
	}

	if candidate != absRoot && !strings.HasPrefix(candidate, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not inside %s", ErrOutsideRoot, candidate, absRoot)
	}

	return candidate, nil
}

// ProjectBasename returns the basename of an absolute working directory,
// the value stored as Worker.Project (§3) -- never the absolute path.
func ProjectBasename(workingDir string) string {
	return filepath.Base(filepath.Clean(workingDir))
}
