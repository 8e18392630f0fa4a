package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrWriterClosed is returned when a closed Writer is used.
	ErrWriterClosed = errors.New("archive writer is closed")

	// ErrGroupFinished is returned when a finished group is modified.
	ErrGroupFinished = errors.New("group already finished")
)

// PathTraversalError reports an archive entry that would be written outside
// the extraction directory.
type PathTraversalError struct {
	Name   string
	Reason string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("path traversal in archive entry %q: %s", e.Name, e.Reason)
}

// ResourceIOError reports a failure saving the backing file of an extra.
type ResourceIOError struct {
	ExtraID string
	Path    string
	Err     error
}

func (e *ResourceIOError) Error() string {
	return fmt.Sprintf("save resource for extra %q to %s: %v", e.ExtraID, e.Path, e.Err)
}

func (e *ResourceIOError) Unwrap() error { return e.Err }
