package watch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned by New when no input path is given.
	ErrNoInput = errors.New("watch: no input path specified")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

// ResolutionError reports that the dependency closure of an input could not be
// computed. The watch set keeps its last successfully resolved value.
type ResolutionError struct {
	Input string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving dependencies of %s: %v", e.Input, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
