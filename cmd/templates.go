package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/inovacc/confsync/internal/core"
	"github.com/inovacc/confsync/internal/giturl"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the template files available in the source repository",
	Long: `Clone or update the source repository and list the distributable
template files found at its root.

Examples:
  confsync templates
  confsync templates --source acme/templates`,
	RunE: runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.Flags().StringP("source", "s", defaultSource, "Source repository holding the templates (owner/repo)")
	templatesCmd.Flags().StringP("workdir", "w", "", "Working directory (default: temporary)")
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	sourceArg, _ := cmd.Flags().GetString("source")
	workdir, _ := cmd.Flags().GetString("workdir")

	source, err := giturl.Parse(sourceArg)
	if err != nil {
		return err
	}

	if workdir == "" {
		tmp, err := os.MkdirTemp("", "confsync-*")
		if err != nil {
			return fmt.Errorf("failed to create working directory: %w", err)
		}

		defer func() { _ = os.RemoveAll(tmp) }()

		workdir = tmp
	} else {
		if workdir, err = expandPath(workdir); err != nil {
			return err
		}
	}

	srcDir, err := core.FetchSource(cmd.Context(), core.SourceOptions{
		Repo:    source,
		WorkDir: workdir,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	if err != nil {
		return err
	}

	names, err := listTemplates(srcDir)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "No template files found in %s.\n", source.FullName())
		return nil
	}

	_, _ = fmt.Fprintln(os.Stdout, boldStyle.Render(fmt.Sprintf("Templates in %s:", source.FullName())))

	for _, name := range names {
		_, _ = fmt.Fprintf(os.Stdout, "  %s\n", name)
	}

	return nil
}

// listTemplates returns the root-level files that look like
// distributable templates, sorted by name.
func listTemplates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if isTemplateName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func isTemplateName(name string) bool {
	suffixes := []string{".gitignore", ".gitattributes", ".editorconfig", ".clang-format", ".yml", ".yaml"}

	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
