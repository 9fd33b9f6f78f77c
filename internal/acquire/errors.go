package acquire

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySelection is returned when the listing yields no downloadable item.
	ErrEmptySelection = errors.New("no media selected")
	// ErrPersistFailure is returned when local storage cannot be written.
	ErrPersistFailure = errors.New("local cache could not be written")
	// ErrNoneDownloaded is returned when every selected item failed to download.
	ErrNoneDownloaded = errors.New("no selected item could be downloaded")
)

// FetchError reports a run-level acquisition failure.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func persistError(op string, cause error) error {
	return &FetchError{Op: op, Err: fmt.Errorf("%w: %w", ErrPersistFailure, cause)}
}
