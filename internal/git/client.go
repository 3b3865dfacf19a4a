// Package git shells out to the system git client.
// Pattern inspired by github.com/cli/cli
package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Client wraps git operations against a single repository directory.
// All operations receive the directory through the client rather than
// relying on the ambient process working directory.
type Client struct {
	GitPath string // Path to git executable
	RepoDir string // Repository directory
	Stderr  io.Writer
	Stdout  io.Writer
}

// NewClient creates a new git client
func NewClient() *Client {
	gitPath, _ := exec.LookPath("git")

	return &Client{
		GitPath: gitPath,
		Stderr:  os.Stderr,
		Stdout:  os.Stdout,
	}
}

// NewClientForRepo creates a client bound to a specific repository directory
func NewClientForRepo(repoDir string) *Client {
	c := NewClient()
	c.RepoDir = repoDir
	return c
}

// Available reports whether a git client is reachable on the execution path.
func Available() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git client not found on PATH: %w", err)
	}

	return nil
}

// Command creates a git command bound to the client's repository directory.
// Note: Do not set Stdout/Stderr if you plan to use CombinedOutput()
func (c *Client) Command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.GitPath, args...)

	if c.RepoDir != "" {
		cmd.Dir = c.RepoDir
	}

	return cmd
}

// run executes a git command and wraps any failure in a GitError
// carrying the captured output.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := c.Command(ctx, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewGitError(args, string(output), err)
	}

	return string(output), nil
}

// Clone clones a repository into targetPath. Authentication relies on
// the ambient git credential configuration of the executing environment.
func (c *Client) Clone(ctx context.Context, cloneURL, targetPath string) error {
	cmd := exec.CommandContext(ctx, c.GitPath, "clone", cloneURL, targetPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return NewGitError([]string{"clone"}, string(output), err)
	}

	return nil
}

// Pull fetches and integrates from the given remote and branch
func (c *Client) Pull(ctx context.Context, remote, branch string) error {
	args := []string{"pull"}
	if remote != "" {
		args = append(args, remote)
		if branch != "" {
			args = append(args, branch)
		}
	}

	_, err := c.run(ctx, args...)

	return err
}

// Push pushes the given branch to the remote
func (c *Client) Push(ctx context.Context, remote, branch string) error {
	args := []string{"push"}
	if remote != "" {
		args = append(args, remote)
		if branch != "" {
			args = append(args, branch)
		}
	}

	_, err := c.run(ctx, args...)

	return err
}

// Add stages exactly the given paths
func (c *Client) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)

	_, err := c.run(ctx, args...)

	return err
}

// Commit creates a commit with the given message
func (c *Client) Commit(ctx context.Context, message string) error {
	_, err := c.run(ctx, "commit", "-m", message)

	return err
}

// StatusPorcelain returns machine-readable working tree status,
// optionally limited to the given paths.
func (c *Client) StatusPorcelain(ctx context.Context, paths ...string) (string, error) {
	args := []string{"status", "--porcelain"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	return c.run(ctx, args...)
}

// HasPendingChanges reports whether the given paths differ from what is
// already tracked in the working copy.
func (c *Client) HasPendingChanges(ctx context.Context, paths ...string) (bool, error) {
	output, err := c.StatusPorcelain(ctx, paths...)
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(output) != "", nil
}

// CurrentBranch returns the current branch name
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// IsRepository checks if the client's directory is a git repository
func (c *Client) IsRepository(ctx context.Context) bool {
	cmd := c.Command(ctx, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}
