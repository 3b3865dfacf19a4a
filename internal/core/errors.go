package core

import "fmt"

// PathCollisionError indicates a local directory exists but does not
// belong to the repository it was expected to hold.
type PathCollisionError struct {
	Path        string
	ExpectedURL string
	ActualURL   string
}

func (e *PathCollisionError) Error() string {
	if e.ActualURL == "" {
		return fmt.Sprintf("path collision: %s is not a clone of %s", e.Path, e.ExpectedURL)
	}

	return fmt.Sprintf("path collision: %s contains %s, expected %s",
		e.Path, e.ActualURL, e.ExpectedURL)
}
