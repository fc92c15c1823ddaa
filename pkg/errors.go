package eutel

import (
	"errors"
	"fmt"
)

// ErrGeometryUnavailable is returned by processors that need the detector
// geometry when none was provided. Callers treat it as fatal.
var ErrGeometryUnavailable = errors.New("detector geometry is not available")

// ErrCollectionExists is returned when adding a collection under a name
// that is already taken in the event.
var ErrCollectionExists = errors.New("collection already exists")

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

// ErrCollectionNotFound represents a missing collection in an event.
type ErrCollectionNotFound struct {
	Name        string
	EventNumber int
}

func (e *ErrCollectionNotFound) Error() string {
	return fmt.Sprintf("collection %q not found in event %d", e.Name, e.EventNumber)
}

// ErrTruncatedRecord represents a raw record shorter than its header claims.
type ErrTruncatedRecord struct {
	EventNumber uint32
	Expected    int
	Got         int
}

func (e *ErrTruncatedRecord) Error() string {
	return fmt.Sprintf("truncated record for event %d: expected %d bytes, got %d", e.EventNumber, e.Expected, e.Got)
}
