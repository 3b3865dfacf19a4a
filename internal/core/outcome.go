package core

import (
	"time"

	"github.com/inovacc/confsync/internal/giturl"
)

// Outcome categorizes the result of the sync procedure for one target.
type Outcome int

const (
	// OutcomeNoChange means the copied files were byte-identical to
	// what the target already tracks; no commit was created.
	OutcomeNoChange Outcome = iota

	// OutcomePushed means a commit was created and pushed.
	OutcomePushed

	// OutcomeCommitted means a commit was created but not pushed,
	// either because the operator declined or because the push failed.
	OutcomeCommitted

	// OutcomeCloneFailed means the target could not be cloned or the
	// existing local directory belongs to a different repository.
	OutcomeCloneFailed

	// OutcomeCopyFailed means a template file could not be copied into
	// the target's working copy.
	OutcomeCopyFailed

	// OutcomeCommitFailed means staging or committing the copied files failed.
	OutcomeCommitFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no changes"
	case OutcomePushed:
		return "pushed"
	case OutcomeCommitted:
		return "committed"
	case OutcomeCloneFailed:
		return "clone failed"
	case OutcomeCopyFailed:
		return "copy failed"
	case OutcomeCommitFailed:
		return "commit failed"
	}

	return "unknown"
}

// Failed reports whether the outcome is a per-target failure.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeCloneFailed, OutcomeCopyFailed, OutcomeCommitFailed:
		return true
	}

	return false
}

// TargetResult records what happened to one target repository.
// Err is set for failed outcomes, and for OutcomeCommitted when the
// commit was preserved locally because the push failed.
type TargetResult struct {
	Repo     giturl.Repository
	Outcome  Outcome
	Err      error
	Duration time.Duration
}
