package scrape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEndOfResults is the panel cursor's exhaustion sentinel.
var ErrEndOfResults = errors.New("end of results")

// UITimeoutError reports a UI surface that never became ready. It fails
// the current task, not the run.
type UITimeoutError struct {
	Stage string
	Err   error
}

func (e *UITimeoutError) Error() string {
	return fmt.Sprintf("ui timeout at %s: %v", e.Stage, e.Err)
}

func (e *UITimeoutError) Unwrap() error { return e.Err }

// StructureError reports that an expected DOM structure is absent,
// usually meaning Maps shipped new markup. Fails the current task.
type StructureError struct {
	Selector string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("expected structure missing: %s", e.Selector)
}

// IncompleteError reports a listing whose mandatory fields never
// populated. The listing is skipped; the task continues.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("extraction incomplete, missing %s", strings.Join(e.Missing, ","))
}

// taskFailure reports whether err should fail the whole SearchTask
// rather than just the current listing.
func taskFailure(err error) bool {
	var ut *UITimeoutError
	var st *StructureError
	return errors.As(err, &ut) || errors.As(err, &st)
}
