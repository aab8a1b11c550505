// Package vcstest builds throwaway git repositories for tests.
package vcstest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit skips the test when git is not installed
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// Run executes git with args and fails the test on error
func Run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}

// InitRepo creates a repository in dir with branch checked out
func InitRepo(t *testing.T, dir, branch string) {
	t.Helper()
	Run(t, "init", "-q", "-b", branch, dir)
	Run(t, "-C", dir, "config", "user.email", "test@example.com")
	Run(t, "-C", dir, "config", "user.name", "Test")
	Run(t, "-C", dir, "config", "commit.gpgsign", "false")
}

// CommitFile writes rel under dir with content and commits it
func CommitFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	Run(t, "-C", dir, "add", "--", rel)
	Run(t, "-C", dir, "commit", "-q", "-m", "update "+rel)
}
