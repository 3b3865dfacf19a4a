package git

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// OriginURL reads the origin remote URL from the repository's
// .git/config without invoking the git client.
func OriginURL(repoDir string) (string, error) {
	gitDir := filepath.Join(repoDir, ".git")

	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("not a git repository: %s", repoDir)
	}

	cfg, err := ini.Load(filepath.Join(gitDir, "config"))
	if err != nil {
		return "", fmt.Errorf("failed to read git config: %w", err)
	}

	sec := cfg.Section(`remote "origin"`)
	if !sec.HasKey("url") {
		return "", fmt.Errorf("no origin remote found in %s", repoDir)
	}

	return sec.Key("url").String(), nil
}
