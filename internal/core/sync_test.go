package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inovacc/confsync/internal/giturl"
	"github.com/inovacc/confsync/internal/manifest"
)

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	require.NoError(t, err, "git %v", args)

	return strings.TrimSpace(string(out))
}

func setGitEnv(t *testing.T) {
	t.Helper()

	t.Setenv("GIT_AUTHOR_NAME", "Config Sync")
	t.Setenv("GIT_AUTHOR_EMAIL", "sync@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Config Sync")
	t.Setenv("GIT_COMMITTER_EMAIL", "sync@example.com")
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// newRemoteRepo creates a bare repository whose default branch holds
// one commit with the given files, standing in for a hosted remote.
func newRemoteRepo(t *testing.T, branch string, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	bare := filepath.Join(root, "remote.git")

	gitRun(t, root, "init", "--bare", "remote.git")
	gitRun(t, bare, "symbolic-ref", "HEAD", "refs/heads/"+branch)

	seed := filepath.Join(root, "seed")
	gitRun(t, root, "clone", bare, "seed")
	gitRun(t, seed, "config", "user.email", "sync@example.com")
	gitRun(t, seed, "config", "user.name", "Config Sync")

	writeFiles(t, seed, files)

	gitRun(t, seed, "add", "-A")
	gitRun(t, seed, "commit", "-m", "seed")
	gitRun(t, seed, "push", "origin", "HEAD:"+branch)

	return bare
}

// pushCommit adds a commit with the given files to a bare repository.
func pushCommit(t *testing.T, bare, branch string, files map[string]string) {
	t.Helper()

	work := filepath.Join(t.TempDir(), "work")
	gitRun(t, "", "clone", bare, work)
	gitRun(t, work, "config", "user.email", "sync@example.com")
	gitRun(t, work, "config", "user.name", "Config Sync")

	writeFiles(t, work, files)

	gitRun(t, work, "add", "-A")
	gitRun(t, work, "commit", "-m", "update")
	gitRun(t, work, "push", "origin", "HEAD:"+branch)
}

// freshClone clones a bare repository so its current contents can be inspected.
func freshClone(t *testing.T, bare string) string {
	t.Helper()

	dest := filepath.Join(t.TempDir(), "inspect")
	gitRun(t, "", "clone", bare, dest)

	return dest
}

func remoteMap(urls map[string]string) func(giturl.Repository) string {
	return func(r giturl.Repository) string {
		if url, ok := urls[r.FullName()]; ok {
			return url
		}

		return r.CloneURL()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func repo(t *testing.T, ref string) giturl.Repository {
	t.Helper()

	r, err := giturl.Parse(ref)
	require.NoError(t, err)

	return r
}

func TestRun_FanOut(t *testing.T) {
	setGitEnv(t)

	const template = "name: ci\non: push\n"

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": template})
	app1Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app1\n"})
	app2Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app2\n"})

	workDir := filepath.Join(t.TempDir(), "work")

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1"), repo(t, "acme/app2")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  workDir,
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      app1Bare,
			"acme/app2":      app2Bare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	// One working copy per repository
	require.DirExists(t, filepath.Join(workDir, "templates"))
	require.DirExists(t, filepath.Join(workDir, "app1"))
	require.DirExists(t, filepath.Join(workDir, "app2"))

	// One result per target, in input order
	require.Len(t, summary.Results, 2)
	require.Equal(t, "acme/app1", summary.Results[0].Repo.FullName())
	require.Equal(t, "acme/app2", summary.Results[1].Repo.FullName())
	require.Equal(t, OutcomePushed, summary.Results[0].Outcome)
	require.Equal(t, OutcomePushed, summary.Results[1].Outcome)
	require.Equal(t, 2, summary.Pushed)

	// Round-trip: the pushed file is byte-identical to the template
	for _, bare := range []string{app1Bare, app2Bare} {
		clone := freshClone(t, bare)

		data, err := os.ReadFile(filepath.Join(clone, ".github", "workflows", "ci.yml"))
		require.NoError(t, err)
		require.Equal(t, template, string(data))
	}
}

func TestRun_Idempotent(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	workDir := filepath.Join(t.TempDir(), "work")

	opts := Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  workDir,
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	}

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, first.Pushed)

	second, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, second.NoChange)
	require.Equal(t, 0, second.Pushed)

	// No new commit was created on the second run
	clone := freshClone(t, targetBare)
	require.Equal(t, "2", gitOut(t, clone, "rev-list", "--count", "HEAD"))
}

func TestRun_TargetIsolation(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	app1Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app1\n"})
	app2Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app2\n"})

	summary, err := Run(context.Background(), Options{
		Source: repo(t, "acme/templates"),
		Targets: []giturl.Repository{
			repo(t, "acme/app1"),
			repo(t, "acme/missing-repo"),
			repo(t, "acme/app2"),
		},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates":    srcBare,
			"acme/app1":         app1Bare,
			"acme/missing-repo": filepath.Join(t.TempDir(), "does-not-exist"),
			"acme/app2":         app2Bare,
		}),
		Logger: quietLogger(),
	})

	// A failed target never fails the run
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	require.Equal(t, OutcomePushed, summary.Results[0].Outcome)
	require.Equal(t, OutcomeCloneFailed, summary.Results[1].Outcome)
	require.Error(t, summary.Results[1].Err)
	require.Equal(t, OutcomePushed, summary.Results[2].Outcome)
	require.Equal(t, 1, summary.Failed)
}

func TestRun_ConfirmDeny(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	workDir := filepath.Join(t.TempDir(), "work")

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  workDir,
		Confirm:  AutoDeny,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, summary.Results[0].Outcome)
	require.NoError(t, summary.Results[0].Err)

	// The commit stays local: the remote never saw the file
	clone := freshClone(t, targetBare)
	require.NoFileExists(t, filepath.Join(clone, ".github", "workflows", "ci.yml"))

	// The local working copy holds the commit for manual follow-up
	require.Equal(t, "2", gitOut(t, filepath.Join(workDir, "app1"), "rev-list", "--count", "HEAD"))
}

func TestRun_BranchFallback(t *testing.T) {
	setGitEnv(t)

	// Remotes whose default branch is master, not main
	srcBare := newRemoteRepo(t, "master", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "master", map[string]string{"README.md": "# app\n"})

	workDir := filepath.Join(t.TempDir(), "work")

	opts := Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  workDir,
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	}

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, first.Pushed)

	// Advance the source; the second run must pick the change up by
	// falling back from main to master when updating in place.
	pushCommit(t, srcBare, "master", map[string]string{"ci.yml": "name: ci\nupdated: yes\n"})

	second, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, second.Pushed)

	clone := freshClone(t, targetBare)

	data, err := os.ReadFile(filepath.Join(clone, ".github", "workflows", "ci.yml"))
	require.NoError(t, err)
	require.Equal(t, "name: ci\nupdated: yes\n", string(data))
}

func TestRun_EphemeralWorkDirCleanup(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.WorkDir)
	require.NoDirExists(t, summary.WorkDir)
	require.Equal(t, 1, summary.Pushed)
}

func TestRun_KeepRetainsWorkDir(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		Keep:     true,
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.DirExists(t, summary.WorkDir)

	t.Cleanup(func() { _ = os.RemoveAll(summary.WorkDir) })
}

func TestRun_MissingSourceFileIsFatal(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"other.yml": "name: other\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ci.yml")

	// No target was touched
	require.Empty(t, summary.Results)
}

func TestRun_SourceCloneFailureIsFatal(t *testing.T) {
	setGitEnv(t)

	_, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": filepath.Join(t.TempDir(), "does-not-exist"),
		}),
		Logger: quietLogger(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to clone source")
}

func TestRun_PathCollision(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	workDir := filepath.Join(t.TempDir(), "work")

	// Something unrelated already occupies the target's directory
	writeFiles(t, filepath.Join(workDir, "app1"), map[string]string{"junk.txt": "junk\n"})

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  workDir,
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCloneFailed, summary.Results[0].Outcome)

	var collision *PathCollisionError
	require.ErrorAs(t, summary.Results[0].Err, &collision)
}

func TestRun_MultipleMappings(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{
		"UnrealEngine.gitignore": "Binaries/\nIntermediate/\n",
		"ci.yml":                 "name: ci\n",
	})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	m := &manifest.Manifest{
		Files: map[string]manifest.FileRule{
			"gitignore": {Source: "UnrealEngine.gitignore"},
		},
		Extra: []manifest.ExtraPair{
			{Local: "ci.yml", Remote: ".github/workflows/ci.yml"},
		},
	}

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: m.Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Confirm:  AutoApprove,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomePushed, summary.Results[0].Outcome)

	clone := freshClone(t, targetBare)
	require.FileExists(t, filepath.Join(clone, ".gitignore"))
	require.FileExists(t, filepath.Join(clone, ".github", "workflows", "ci.yml"))

	// Both files arrive in a single commit
	require.Equal(t, "2", gitOut(t, clone, "rev-list", "--count", "HEAD"))
}

func TestRun_NoMappings(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Source:  repo(t, "acme/templates"),
		Targets: []giturl.Repository{repo(t, "acme/app1")},
	})
	require.Error(t, err)
}

func TestRun_NilConfirmNeverPushes(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	targetBare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app\n"})

	summary, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      targetBare,
		}),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, summary.Results[0].Outcome)
}

func TestRun_OnResultOrder(t *testing.T) {
	setGitEnv(t)

	srcBare := newRemoteRepo(t, "main", map[string]string{"ci.yml": "name: ci\n"})
	app1Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app1\n"})
	app2Bare := newRemoteRepo(t, "main", map[string]string{"README.md": "# app2\n"})

	var seen []string

	_, err := Run(context.Background(), Options{
		Source:   repo(t, "acme/templates"),
		Targets:  []giturl.Repository{repo(t, "acme/app1"), repo(t, "acme/app2")},
		Mappings: manifest.Default("ci.yml").Mappings(),
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Confirm:  AutoDeny,
		RemoteFor: remoteMap(map[string]string{
			"acme/templates": srcBare,
			"acme/app1":      app1Bare,
			"acme/app2":      app2Bare,
		}),
		Logger:   quietLogger(),
		OnResult: func(res TargetResult) { seen = append(seen, res.Repo.FullName()) },
	})
	require.NoError(t, err)
	require.Equal(t, []string{"acme/app1", "acme/app2"}, seen)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "no changes", OutcomeNoChange.String())
	require.Equal(t, "pushed", OutcomePushed.String())
	require.Equal(t, "committed", OutcomeCommitted.String())
	require.Equal(t, "clone failed", OutcomeCloneFailed.String())
	require.Equal(t, "copy failed", OutcomeCopyFailed.String())
	require.Equal(t, "commit failed", OutcomeCommitFailed.String())

	require.True(t, OutcomeCloneFailed.Failed())
	require.False(t, OutcomePushed.Failed())
}

func TestPathCollisionError(t *testing.T) {
	err := &PathCollisionError{Path: "/tmp/app1", ExpectedURL: "https://github.com/acme/app1.git"}
	require.Contains(t, err.Error(), "/tmp/app1")

	err = &PathCollisionError{Path: "/tmp/app1", ExpectedURL: "a", ActualURL: "b"}
	require.Contains(t, err.Error(), "expected a")

	var target *PathCollisionError

	require.True(t, errors.As(err, &target))
}
