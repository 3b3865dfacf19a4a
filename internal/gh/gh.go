// Package gh discovers target repositories through the GitHub API.
package gh

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"

	"github.com/inovacc/confsync/internal/giturl"
)

// NewClient creates a GitHub client, authenticated when a token is given.
func NewClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// TokenFromEnv returns the ambient GitHub token, if any.
func TokenFromEnv() string {
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}

	return ""
}

// ListOrgRepos lists an organization's repositories as sync targets,
// skipping archived repositories and forks.
func ListOrgRepos(ctx context.Context, client *github.Client, org string) ([]giturl.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Repository

	for {
		repos, resp, err := client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories for %s: %w", org, err)
		}

		all = append(all, repos...)

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return collectTargets(all), nil
}

func collectTargets(repos []*github.Repository) []giturl.Repository {
	targets := make([]giturl.Repository, 0, len(repos))

	for _, repo := range repos {
		if repo.GetArchived() || repo.GetFork() {
			continue
		}

		owner := repo.GetOwner().GetLogin()
		name := repo.GetName()

		if owner == "" || name == "" {
			continue
		}

		targets = append(targets, giturl.Repository{Owner: owner, Name: name, Host: "github.com"})
	}

	return targets
}
