package cmd

import (
	"os"

	"github.com/inovacc/confsync/internal/application"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Distribute shared config templates to game-engine repositories",
	Long: `Confsync stores shared .gitignore, .gitattributes, .editorconfig and
.clang-format templates for game-engine projects and distributes them
to a list of target repositories.

It clones (or updates) the source repository holding the canonical
templates, copies the selected files into each target's working copy,
and commits and optionally pushes the result, one target at a time.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
