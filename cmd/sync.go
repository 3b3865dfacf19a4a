package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/inovacc/confsync/internal/core"
	"github.com/inovacc/confsync/internal/gh"
	"github.com/inovacc/confsync/internal/giturl"
	"github.com/inovacc/confsync/internal/manifest"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultSource = "inovacc/ConfigCommon"
	defaultFile   = "update-configs.yml"

	summaryRounding = 10 * time.Millisecond
)

var syncCmd = &cobra.Command{
	Use:   "sync [owner/repo ...]",
	Short: "Copy config templates into target repositories",
	Long: `Clone or update the source repository, copy the selected template
files into each target repository's working copy, and commit the result.
Each push is gated on an interactive confirmation unless --yes or
--no-push is given.

Targets are processed sequentially in input order. A failure on one
target is logged and does not stop the remaining targets.

Examples:
  confsync sync acme/app1 acme/app2
  confsync sync --source acme/templates --file ci.yml acme/app1
  confsync sync --manifest confsync.yaml
  confsync sync --org acme --yes
  confsync sync --workdir ~/sync-work --keep acme/app1`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("source", "s", defaultSource, "Source repository holding the templates (owner/repo)")
	syncCmd.Flags().StringP("file", "f", defaultFile, "Name of the file to distribute")
	syncCmd.Flags().StringP("manifest", "m", "", "Sync manifest (YAML) describing files and targets")
	syncCmd.Flags().StringP("workdir", "w", "", "Working directory (default: temporary, auto-cleaned)")
	syncCmd.Flags().Bool("keep", false, "Keep the temporary working directory after the run")
	syncCmd.Flags().BoolP("yes", "y", false, "Push every commit without asking")
	syncCmd.Flags().Bool("no-push", false, "Commit locally but never push")
	syncCmd.Flags().String("org", "", "Add all repositories of a GitHub organization as targets")
	syncCmd.Flags().String("message", "", "Commit message override")
}

func runSync(cmd *cobra.Command, args []string) error {
	sourceArg, _ := cmd.Flags().GetString("source")
	file, _ := cmd.Flags().GetString("file")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	workdir, _ := cmd.Flags().GetString("workdir")
	keep, _ := cmd.Flags().GetBool("keep")
	yes, _ := cmd.Flags().GetBool("yes")
	noPush, _ := cmd.Flags().GetBool("no-push")
	org, _ := cmd.Flags().GetString("org")
	message, _ := cmd.Flags().GetString("message")

	if yes && noPush {
		return fmt.Errorf("--yes and --no-push are mutually exclusive")
	}

	m := manifest.Default(file)

	if manifestPath != "" {
		loaded, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}

		m = loaded
	}

	if m.Source != "" && !cmd.Flags().Changed("source") {
		sourceArg = m.Source
	}

	source, err := giturl.Parse(sourceArg)
	if err != nil {
		return err
	}

	targets, err := giturl.ParseAll(append(append([]string{}, args...), m.Targets...))
	if err != nil {
		return err
	}

	if org != "" {
		ctx := cmd.Context()
		client := gh.NewClient(ctx, gh.TokenFromEnv())

		orgTargets, err := gh.ListOrgRepos(ctx, client, org)
		if err != nil {
			return err
		}

		targets = append(targets, orgTargets...)
	}

	if len(targets) == 0 {
		return fmt.Errorf("no target repositories: pass owner/repo arguments, --org, or a manifest with targets")
	}

	if workdir != "" {
		if workdir, err = expandPath(workdir); err != nil {
			return err
		}
	}

	confirm := pushPolicy(yes, noPush)

	opts := core.Options{
		Source:        source,
		Targets:       targets,
		Mappings:      m.Mappings(),
		WorkDir:       workdir,
		Keep:          keep,
		CommitMessage: message,
		Confirm:       confirm,
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, nil)),
		OnResult:      printResult,
	}

	summary, err := core.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	printSummary(summary)

	// Per-target failures are reported above but do not fail the run.
	return nil
}

// pushPolicy picks the confirmation gate: explicit flags win, otherwise
// prompt interactively when stdin is a terminal and keep commits local
// when it is not.
func pushPolicy(yes, noPush bool) core.ConfirmFunc {
	switch {
	case yes:
		return core.AutoApprove
	case noPush:
		return core.AutoDeny
	case term.IsTerminal(int(os.Stdin.Fd())):
		return promptConfirm
	default:
		_, _ = fmt.Fprintln(os.Stdout, dimStyle.Render("stdin is not a terminal, commits will not be pushed (use --yes to push)"))

		return core.AutoDeny
	}
}

func printResult(res core.TargetResult) {
	name := res.Repo.FullName()

	switch res.Outcome {
	case core.OutcomePushed:
		_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", okStyle.Render("[pushed]   "), name)
	case core.OutcomeCommitted:
		if res.Err != nil {
			_, _ = fmt.Fprintf(os.Stdout, "%s %s - %s\n", warnStyle.Render("[committed]"), name,
				dimStyle.Render("push failed, check the working copy manually"))
		} else {
			_, _ = fmt.Fprintf(os.Stdout, "%s %s - %s\n", warnStyle.Render("[committed]"), name,
				dimStyle.Render("push skipped"))
		}
	case core.OutcomeNoChange:
		_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", dimStyle.Render("[no change]"), name)
	default:
		_, _ = fmt.Fprintf(os.Stdout, "%s %s - %v\n", errStyle.Render("[failed]   "), name, res.Err)
	}
}

func printSummary(summary *core.Summary) {
	_, _ = fmt.Fprintln(os.Stdout)
	_, _ = fmt.Fprintf(os.Stdout, "%s %d pushed, %d committed, %d unchanged, %d failed (%d targets in %s)\n",
		boldStyle.Render("Sync complete:"),
		summary.Pushed, summary.Committed, summary.NoChange, summary.Failed,
		len(summary.Results), summary.Duration.Round(summaryRounding))

	if summary.Failed > 0 {
		_, _ = fmt.Fprintln(os.Stdout, "\nFailed targets:")

		for _, res := range summary.Results {
			if res.Outcome.Failed() {
				_, _ = fmt.Fprintf(os.Stdout, "  - %s: %v\n", res.Repo.FullName(), res.Err)
			}
		}
	}
}
