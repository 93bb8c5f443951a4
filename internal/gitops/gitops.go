// Package gitops identifies the engine build a sweep measured.
package gitops

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Revision returns the HEAD commit of the work tree containing dir, with a
// "-dirty" suffix when tracked or untracked changes are present.
func Revision(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	head := exec.Command("git", "rev-parse", "--verify", "HEAD")
	head.Dir = abs
	out, err := head.CombinedOutput()
	if err != nil {
		if bytes.Contains(out, []byte("not a git repository")) {
			return "", fmt.Errorf("%s: %w", abs, ErrNotRepository)
		}
		return "", fmt.Errorf("git rev-parse HEAD: %s: %w", bytes.TrimSpace(out), err)
	}
	rev := strings.TrimSpace(string(out))

	status := exec.Command("git", "status", "--porcelain")
	status.Dir = abs
	changes, err := status.Output()
	if err != nil {
		return "", fmt.Errorf("git status: %w", err)
	}
	if len(bytes.TrimSpace(changes)) > 0 {
		rev += "-dirty"
	}
	return rev, nil
}

// RevisionOrEmpty is Revision for callers that only annotate output.
func RevisionOrEmpty(dir string) string {
	rev, err := Revision(dir)
	if err != nil {
		return ""
	}
	return rev
}
