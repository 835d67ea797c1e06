package source

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when subscribing to or writing through a closed source.
var ErrClosed = errors.New("source is closed")

// ConnectionInitError means the source client could not be initialized.
type ConnectionInitError struct {
	Kind     string
	Endpoint string
	Err      error
}

func (e *ConnectionInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s source at %q: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *ConnectionInitError) Unwrap() error { return e.Err }

// ReadError is a failure to read or follow a path.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is a failed write of a value.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
