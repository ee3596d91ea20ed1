package lifecycle

import "fmt"

// ItemError is a failure isolated to one item. It never aborts a batch.
type ItemError struct {
	Op  string
	Key string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// AmbiguousProbeError is an existence probe that returned neither a clean
// answer nor not-found. The object is treated as existing and skipped.
type AmbiguousProbeError struct {
	Key string
	Err error
}

func (e *AmbiguousProbeError) Error() string {
	return fmt.Sprintf("probe %s: assuming it exists: %v", e.Key, e.Err)
}

func (e *AmbiguousProbeError) Unwrap() error { return e.Err }

// NotYetRestorableError is a download of an object whose restoration has not
// completed. It is an expected terminal state, counted as skipped.
type NotYetRestorableError struct {
	Key string
	Err error
}

func (e *NotYetRestorableError) Error() string {
	return fmt.Sprintf("download %s: not yet restored", e.Key)
}

func (e *NotYetRestorableError) Unwrap() error { return e.Err }
