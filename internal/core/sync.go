// Package core implements the multi-repository template sync procedure:
// prepare a source repository, fan its template files out to a list of
// target repositories, and commit and optionally push the result.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/confsync/internal/git"
	"github.com/inovacc/confsync/internal/giturl"
	"github.com/inovacc/confsync/internal/manifest"
	"github.com/inovacc/confsync/internal/retry"
)

const (
	defaultCleanupAttempts = 3
	defaultCleanupDelay    = 500 * time.Millisecond
)

// Options configures a sync run.
type Options struct {
	Source   giturl.Repository
	Targets  []giturl.Repository
	Mappings []manifest.Mapping

	// WorkDir is where repository working copies are placed. Empty
	// means a timestamped directory under the system temp location,
	// deleted after the run unless Keep is set.
	WorkDir string
	Keep    bool

	// CommitMessage overrides the default message, which references
	// the source repository.
	CommitMessage string

	// Confirm gates each push. Nil defaults to AutoDeny so that a
	// misconfigured caller never pushes silently.
	Confirm ConfirmFunc

	// RemoteFor resolves a repository to its clone URL. Nil defaults
	// to the HTTPS GitHub URL.
	RemoteFor func(giturl.Repository) string

	Logger *slog.Logger

	// OnResult, when set, is invoked with each target's result as soon
	// as that target finishes.
	OnResult func(TargetResult)

	CleanupAttempts int
	CleanupDelay    time.Duration
}

// Summary aggregates the results of a sync run.
type Summary struct {
	WorkDir   string
	Results   []TargetResult
	Pushed    int
	Committed int
	NoChange  int
	Failed    int
	Duration  time.Duration
}

func (s *Summary) add(res TargetResult) {
	s.Results = append(s.Results, res)

	switch res.Outcome {
	case OutcomePushed:
		s.Pushed++
	case OutcomeCommitted:
		s.Committed++
	case OutcomeNoChange:
		s.NoChange++
	default:
		s.Failed++
	}
}

// Run executes the sync procedure. Fatal conditions (no git client,
// source clone failure, missing source file, working directory
// creation failure) return an error; per-target failures are isolated
// and recorded in the summary. Cleanup of an ephemeral working
// directory always runs, and its failures never replace the run error.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := git.Available(); err != nil {
		return nil, err
	}

	if len(opts.Mappings) == 0 {
		return nil, fmt.Errorf("no file mappings to distribute")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Confirm == nil {
		opts.Confirm = AutoDeny
	}

	if opts.RemoteFor == nil {
		opts.RemoteFor = func(r giturl.Repository) string { return r.CloneURL() }
	}

	if opts.CommitMessage == "" {
		opts.CommitMessage = fmt.Sprintf("Sync config templates from %s", opts.Source.FullName())
	}

	wd := opts.WorkDir
	ephemeral := wd == ""

	if ephemeral {
		wd = filepath.Join(os.TempDir(), "confsync-"+time.Now().Format("20060102-150405.000"))
	}

	if err := os.MkdirAll(wd, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory %s: %w", wd, err)
	}

	summary, runErr := run(ctx, opts, wd, logger)

	if ephemeral && !opts.Keep {
		cleanupWorkDir(wd, opts.CleanupAttempts, opts.CleanupDelay, logger)
	}

	return summary, runErr
}

func run(ctx context.Context, opts Options, wd string, logger *slog.Logger) (*Summary, error) {
	start := time.Now()
	summary := &Summary{WorkDir: wd}

	srcDir, err := FetchSource(ctx, SourceOptions{
		Repo:      opts.Source,
		WorkDir:   wd,
		RemoteFor: opts.RemoteFor,
		Logger:    logger,
	})
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	// Nothing to distribute is fatal before any target is touched.
	for _, mp := range opts.Mappings {
		if _, err := os.Stat(filepath.Join(srcDir, mp.Source)); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("source file %q not found in %s: %w", mp.Source, opts.Source.FullName(), err)
		}
	}

	for _, target := range opts.Targets {
		res := processTarget(ctx, opts, wd, srcDir, target, logger)
		summary.add(res)

		if res.Err != nil {
			logger.Warn("target finished with error",
				"repo", target.FullName(), "outcome", res.Outcome.String(), "error", res.Err)
		} else {
			logger.Info("target finished",
				"repo", target.FullName(), "outcome", res.Outcome.String())
		}

		if opts.OnResult != nil {
			opts.OnResult(res)
		}
	}

	summary.Duration = time.Since(start)

	return summary, nil
}

// SourceOptions configures FetchSource.
type SourceOptions struct {
	Repo      giturl.Repository
	WorkDir   string
	RemoteFor func(giturl.Repository) string
	Logger    *slog.Logger
}

// FetchSource clones the source repository into the working directory,
// or updates an existing working copy in place. Update failures beyond
// the main/master fallback are tolerated and the existing copy is used
// as-is; clone failures are returned to the caller.
func FetchSource(ctx context.Context, opts SourceOptions) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	remoteFor := opts.RemoteFor
	if remoteFor == nil {
		remoteFor = func(r giturl.Repository) string { return r.CloneURL() }
	}

	dir := filepath.Join(opts.WorkDir, opts.Repo.DirName())
	remote := remoteFor(opts.Repo)

	if dirExists(dir) {
		if err := verifyOrigin(dir, remote); err != nil {
			return "", err
		}

		updateRepo(ctx, dir, opts.Repo, logger)

		return dir, nil
	}

	logger.Info("cloning source", "repo", opts.Repo.FullName())

	if err := git.NewClient().Clone(ctx, remote, dir); err != nil {
		return "", fmt.Errorf("failed to clone source %s: %w", opts.Repo.FullName(), err)
	}

	return dir, nil
}

// processTarget runs the per-repository sync procedure. Every error is
// absorbed into the returned result so one bad target never blocks the
// rest of the run.
func processTarget(ctx context.Context, opts Options, wd, srcDir string, target giturl.Repository, logger *slog.Logger) TargetResult {
	start := time.Now()

	res := TargetResult{Repo: target}
	defer func() { res.Duration = time.Since(start) }()

	dir := filepath.Join(wd, target.DirName())
	remote := opts.RemoteFor(target)

	if dirExists(dir) {
		if err := verifyOrigin(dir, remote); err != nil {
			res.Outcome = OutcomeCloneFailed
			res.Err = err

			return res
		}

		updateRepo(ctx, dir, target, logger)
	} else {
		logger.Info("cloning target", "repo", target.FullName())

		if err := git.NewClient().Clone(ctx, remote, dir); err != nil {
			res.Outcome = OutcomeCloneFailed
			res.Err = fmt.Errorf("failed to clone %s: %w", target.FullName(), err)

			return res
		}
	}

	paths := make([]string, 0, len(opts.Mappings))

	for _, mp := range opts.Mappings {
		dest := filepath.Join(dir, filepath.FromSlash(mp.Dest))

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			res.Outcome = OutcomeCopyFailed
			res.Err = fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)

			return res
		}

		if err := copyFile(filepath.Join(srcDir, mp.Source), dest); err != nil {
			res.Outcome = OutcomeCopyFailed
			res.Err = fmt.Errorf("failed to copy %s: %w", mp.Source, err)

			return res
		}

		paths = append(paths, filepath.FromSlash(mp.Dest))
	}

	client := git.NewClientForRepo(dir)

	changed, err := client.HasPendingChanges(ctx, paths...)
	if err != nil {
		res.Outcome = OutcomeCommitFailed
		res.Err = fmt.Errorf("failed to inspect status of %s: %w", target.FullName(), err)

		return res
	}

	if !changed {
		res.Outcome = OutcomeNoChange

		return res
	}

	if err := client.Add(ctx, paths...); err != nil {
		res.Outcome = OutcomeCommitFailed
		res.Err = fmt.Errorf("failed to stage files in %s: %w", target.FullName(), err)

		return res
	}

	if err := client.Commit(ctx, opts.CommitMessage); err != nil {
		res.Outcome = OutcomeCommitFailed
		res.Err = fmt.Errorf("failed to commit in %s: %w", target.FullName(), err)

		return res
	}

	branch, err := client.CurrentBranch(ctx)
	if err != nil {
		branch = "HEAD"
	}

	prompt := fmt.Sprintf("Push %s to %s? [y/N]: ", branch, target.FullName())
	if !opts.Confirm(prompt) {
		logger.Info("push skipped by operator", "repo", target.FullName())

		res.Outcome = OutcomeCommitted

		return res
	}

	if err := client.Push(ctx, "origin", branch); err != nil {
		// The commit is preserved locally; the operator checks manually.
		logger.Warn("push failed, commit kept locally",
			"repo", target.FullName(), "dir", dir, "error", err)

		res.Outcome = OutcomeCommitted
		res.Err = fmt.Errorf("push to %s failed: %w", target.FullName(), err)

		return res
	}

	res.Outcome = OutcomePushed

	return res
}

// updateRepo pulls the main branch, falling back to master when the
// remote uses the older default. Failures beyond the fallback are not
// escalated; the existing local copy is used as-is.
func updateRepo(ctx context.Context, dir string, repo giturl.Repository, logger *slog.Logger) {
	client := git.NewClientForRepo(dir)

	if err := client.Pull(ctx, "origin", "main"); err != nil {
		if fallbackErr := client.Pull(ctx, "origin", "master"); fallbackErr != nil {
			logger.Warn("pull failed, using existing copy",
				"repo", repo.FullName(), "error", fallbackErr)
		}
	}
}

func verifyOrigin(dir, wantURL string) error {
	gotURL, err := git.OriginURL(dir)
	if err != nil {
		return &PathCollisionError{Path: dir, ExpectedURL: wantURL}
	}

	if gotURL != wantURL {
		return &PathCollisionError{Path: dir, ExpectedURL: wantURL, ActualURL: gotURL}
	}

	return nil
}

func cleanupWorkDir(wd string, attempts int, delay time.Duration, logger *slog.Logger) {
	if attempts <= 0 {
		attempts = defaultCleanupAttempts
	}

	if delay <= 0 {
		delay = defaultCleanupDelay
	}

	// Retried because a just-exited git subprocess can hold a transient
	// lock on the tree.
	err := retry.Do(attempts, delay, func() error {
		return os.RemoveAll(wd)
	})
	if err != nil {
		logger.Warn("failed to remove temporary working directory, remove it manually",
			"dir", wd, "error", err)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dest, data, 0o644)
}
