// Package runtimeagent implements the scoped tool surface, prompt
// assembly, and artifact contracts the sync/maintain/chat cycles use to
// delegate semantic work to an LLM orchestrator (§4.8).
package runtimeagent

import (
	"path/filepath"
	"strings"

	"github.com/lerim-dev/lerim/internal/errs"
)

// Roots is the set of allowed filesystem roots for one tool invocation,
// split by operation kind (§4.8: "for reads ... for writes ...").
type Roots struct {
	Read  []string
	Write []string
}

// ForMode returns the allowed roots for one runtime-agent mode, built from
// the memory root, workspace root, the current run's folder, the global
// cache dir, and any extra roots explicitly granted (e.g. a trace file's
// parent directory).
func ForMode(mode Mode, memoryRoot, workspaceRoot, runFolder, cacheDir string, extraReadRoots ...string) Roots {
	read := append([]string{memoryRoot, workspaceRoot, runFolder, cacheDir}, extraReadRoots...)
	write := []string{memoryRoot, runFolder}
	switch mode {
	case ModeChat:
		// Chat never writes.
		write = nil
	}
	return Roots{Read: read, Write: write}
}

// checkRoots resolves path to an absolute, cleaned form and verifies it
// falls under at least one of roots. Returns an *errs.BoundaryError when it
// does not.
func checkRoots(roots []string, path, op string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &errs.BoundaryError{Root: strings.Join(roots, ", "), Path: path, Op: op}
	}
	abs = filepath.Clean(abs)

	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootAbs = filepath.Clean(rootAbs)
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", &errs.BoundaryError{Root: strings.Join(roots, ", "), Path: path, Op: op}
}

// CheckRead verifies path is inside one of roots.Read.
func (r Roots) CheckRead(path string) (string, error) {
	return checkRoots(r.Read, path, "read")
}

// CheckWrite verifies path is inside one of roots.Write.
func (r Roots) CheckWrite(path string) (string, error) {
	return checkRoots(r.Write, path, "write")
}
