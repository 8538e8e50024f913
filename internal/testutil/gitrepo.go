// Package testutil provides git fixtures shared by the package tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Identity sets a committer identity in the environment so that commands
// which create commits (commit, stash) work on machines without a git config.
func Identity(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@test.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@test.com")
}

// Git runs git in dir and returns its trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a repo with an initial commit on the given branch and
// returns its directory. It serves as the "remote" for clone tests.
func InitRepo(t *testing.T, dir, branch string) string {
	t.Helper()
	if out, err := exec.Command("git", "init", "-b", branch, dir).CombinedOutput(); err != nil {
		t.Fatalf("git init: %v: %s", err, out)
	}
	Git(t, dir, "config", "user.email", "test@test.com")
	Git(t, dir, "config", "user.name", "Test")
	CommitFile(t, dir, "README.md", "initial\n", "Initial commit")
	return dir
}

// CommitFile creates or overwrites a file and commits it.
func CommitFile(t *testing.T, repoDir, name, content, msg string) {
	t.Helper()
	WriteFile(t, filepath.Join(repoDir, name), content)
	Git(t, repoDir, "add", name)
	Git(t, repoDir, "commit", "-m", msg)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Head returns the commit hash HEAD points to in dir.
func Head(t *testing.T, dir string) string {
	t.Helper()
	return Git(t, dir, "rev-parse", "HEAD")
}
