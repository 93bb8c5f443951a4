package gitops_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/bgjit/internal/gitops"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	c := exec.Command("git", args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func createTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	git(t, dir, "init")
	git(t, dir, "config", "user.email", "test@test.com")
	git(t, dir, "config", "user.name", "Test")
	os.WriteFile(filepath.Join(dir, "engine.cpp"), []byte("int main() {}"), 0o644)
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial")
	return dir
}

func TestRevisionClean(t *testing.T) {
	repo := createTestRepo(t)
	want := git(t, repo, "rev-parse", "HEAD")
	got, err := gitops.Revision(repo)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	if got != want {
		t.Errorf("revision: got %q, want %q", got, want)
	}
}

func TestRevisionFromSubdirectory(t *testing.T) {
	repo := createTestRepo(t)
	sub := filepath.Join(repo, "build")
	os.Mkdir(sub, 0o755)
	got, err := gitops.Revision(sub)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	// An empty untracked directory does not dirty the tree.
	if strings.HasSuffix(got, "-dirty") {
		t.Errorf("unexpected dirty revision %q", got)
	}
}

func TestRevisionDirty(t *testing.T) {
	repo := createTestRepo(t)
	os.WriteFile(filepath.Join(repo, "engine.cpp"), []byte("int main() { return 1; }"), 0o644)
	got, err := gitops.Revision(repo)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	if !strings.HasSuffix(got, "-dirty") {
		t.Errorf("expected dirty revision, got %q", got)
	}
}

func TestRevisionOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	_, err := gitops.Revision(dir)
	if !errors.Is(err, gitops.ErrNotRepository) {
		t.Fatalf("expected ErrNotRepository, got %v", err)
	}
	if got := gitops.RevisionOrEmpty(dir); got != "" {
		t.Errorf("RevisionOrEmpty: got %q", got)
	}
}
