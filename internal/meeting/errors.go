package meeting

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigTimeout means the ICE configuration request got no answer
	// within the bounded interval. Fatal to the join.
	ErrConfigTimeout = errors.New("ice configuration timeout")

	// ErrMediaAccessDenied means the capture layer refused to hand out
	// local media. Fatal to the join.
	ErrMediaAccessDenied = errors.New("media access denied")

	ErrAlreadyJoined  = errors.New("already joined a meeting")
	ErrNotJoined      = errors.New("not joined to a meeting")
	ErrJoinAborted    = errors.New("join aborted")
	ErrSignalingError = errors.New("signaling server error")
	ErrLinkClosed     = errors.New("peer link closed")
)

// MeetingError annotates an error with the operation that produced it.
type MeetingError struct {
	Op      string
	Err     error
	Details string
}

func (e *MeetingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MeetingError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *MeetingError {
	return &MeetingError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *MeetingError {
	return &MeetingError{Op: op, Err: err, Details: details}
}
