package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Client provides git operations for working copy management
type Client interface {
	// Origin returns the origin URL of the working copy rooted at dir
	Origin(dir string) (string, error)
	// Clone clones url into dir, which must be empty or absent
	Clone(ctx context.Context, url, dir string) error
	// Stash stashes local modifications and reports whether anything was stashed
	Stash(ctx context.Context, dir string) (bool, error)
	// Pull fetches and integrates upstream changes
	Pull(ctx context.Context, url, dir string) error
}

// ShellClient implements Client by shelling out to the git command.
// Working copies are inspected through Inspector.
type ShellClient struct {
	Inspector

	sshKeyFile     string
	httpsTokenFile string
}

// NewShellClient creates a new git client that uses the git command
func NewShellClient(sshKeyFile, httpsTokenFile string) *ShellClient {
	return &ShellClient{
		sshKeyFile:     sshKeyFile,
		httpsTokenFile: httpsTokenFile,
	}
}

// Clone clones url into dir
func (c *ShellClient) Clone(ctx context.Context, url, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", url, dir)
	if err := c.configureAuth(cmd, url); err != nil {
		return err
	}

	if _, err := c.run(cmd); err != nil {
		return err
	}
	return nil
}

// Stash stashes uncommitted changes in dir. The stash entry is kept so the
// changes can be recovered with git stash pop.
func (c *ShellClient) Stash(ctx context.Context, dir string) (bool, error) {
	before := c.stashRef(ctx, dir)

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "stash")
	if _, err := c.run(cmd); err != nil {
		return false, err
	}

	return c.stashRef(ctx, dir) != before, nil
}

// stashRef returns the commit refs/stash points to, or "" if there is none
func (c *ShellClient) stashRef(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "-q", "--verify", "refs/stash")
	out, err := c.run(cmd)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Pull fetches and merges the upstream branch of dir
func (c *ShellClient) Pull(ctx context.Context, url, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "pull")
	if err := c.configureAuth(cmd, url); err != nil {
		return err
	}

	if _, err := c.run(cmd); err != nil {
		return err
	}
	return nil
}

// configureAuth sets up authentication for git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) error {
	if cmd.Env == nil {
		cmd.Env = commandEnv()
	}

	// SSH authentication
	if c.sshKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		// The path is shell-quoted to prevent injection via crafted filenames.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.sshKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	// HTTPS authentication with token
	if c.httpsTokenFile != "" && strings.HasPrefix(url, "https://") {
		token, err := os.ReadFile(c.httpsTokenFile)
		if err != nil {
			return fmt.Errorf("failed to read HTTPS token file: %w", err)
		}

		tokenStr := strings.TrimSpace(string(token))

		// The token travels in the environment and is read back by an inline
		// credential helper, so it never appears in the command line.
		cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
		cmd.Env = append(cmd.Env, "MATERIALSYNC_GIT_TOKEN="+tokenStr)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$MATERIALSYNC_GIT_TOKEN"; }; f`,
		)
	}

	return nil
}

// commandEnv returns the process environment with a fixed locale, so that
// git messages can be classified.
func commandEnv() []string {
	return append(os.Environ(), "LC_ALL=C", "LANGUAGE=C")
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand (e.g. "clone", "pull").
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// run executes a command and returns its stdout. On failure the error is an
// *Error carrying stderr.
func (c *ShellClient) run(cmd *exec.Cmd) (string, error) {
	if cmd.Env == nil {
		cmd.Env = commandEnv()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), newError(cmd.Args, stderr.String(), err)
	}
	return stdout.String(), nil
}
