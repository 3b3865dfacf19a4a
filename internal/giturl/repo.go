// Package giturl parses repository references and builds clone URLs.
package giturl

import (
	"fmt"
	"strings"
)

const defaultHost = "github.com"

// Repository represents a Git repository with owner, name, and host
type Repository struct {
	Owner string
	Name  string
	Host  string
}

// CloneURL returns the HTTPS clone URL for the repository
func (r Repository) CloneURL() string {
	host := r.Host
	if host == "" {
		host = defaultHost
	}

	return fmt.Sprintf("https://%s/%s/%s.git", host, r.Owner, r.Name)
}

// FullName returns the "owner/repo" string
func (r Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// DirName returns the local directory name for a working copy of the
// repository, which is the text after the owner segment.
func (r Repository) DirName() string {
	return r.Name
}

func (r Repository) String() string {
	return r.FullName()
}

// Parse parses a repository reference into a Repository struct.
// Supported formats:
//   - "owner/repo"
//   - "https://github.com/owner/repo[.git]"
//
// Malformed references (missing owner or name, stray separators) are
// rejected up front instead of being handed to the git client.
func Parse(arg string) (Repository, error) {
	s := strings.TrimSpace(arg)
	if s == "" {
		return Repository{}, fmt.Errorf("empty repository reference")
	}

	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		return parseFromURL(s)
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Repository{}, fmt.Errorf("invalid repository reference %q: expected owner/repo", arg)
	}

	owner := strings.TrimSpace(parts[0])
	name := strings.TrimSpace(strings.TrimSuffix(parts[1], ".git"))

	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("invalid repository reference %q: owner and repo cannot be empty", arg)
	}

	return Repository{Owner: owner, Name: name, Host: defaultHost}, nil
}

// ParseAll parses a list of references, failing on the first invalid one.
func ParseAll(args []string) ([]Repository, error) {
	repos := make([]Repository, 0, len(args))

	for _, arg := range args {
		repo, err := Parse(arg)
		if err != nil {
			return nil, err
		}

		repos = append(repos, repo)
	}

	return repos, nil
}

func parseFromURL(rawURL string) (Repository, error) {
	s := rawURL
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 {
		return Repository{}, fmt.Errorf("invalid repository URL %q: expected https://host/owner/repo", rawURL)
	}

	host := strings.ToLower(strings.TrimPrefix(parts[0], "www."))
	owner := parts[1]
	name := strings.TrimSuffix(parts[2], ".git")

	if host == "" || owner == "" || name == "" {
		return Repository{}, fmt.Errorf("invalid repository URL %q", rawURL)
	}

	return Repository{Owner: owner, Name: name, Host: host}, nil
}
