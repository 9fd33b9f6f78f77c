package picker

import (
	"errors"
	"fmt"
)

// ErrInvalidSession is returned when a create response lacks an id or picker URI.
var ErrInvalidSession = errors.New("picker session response missing id or pickerUri")

// SessionError reports a transient failure managing the remote picking session.
type SessionError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("picker session %s %s: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("picker session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// ErrNoSession is returned when an operation needs a picking session and none is held.
var ErrNoSession = errors.New("no picker session is active")
