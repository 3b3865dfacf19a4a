package core

// ConfirmFunc decides whether a commit may be pushed to its remote.
// The prompt names the target repository and branch.
type ConfirmFunc func(prompt string) bool

// AutoApprove pushes every commit without asking.
func AutoApprove(string) bool { return true }

// AutoDeny keeps every commit local.
func AutoDeny(string) bool { return false }
