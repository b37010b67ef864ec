package m235

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure returned by an Actuator
type ErrorKind int

const (
	// KindNone is the kind of a nil error
	KindNone ErrorKind = iota

	// KindValidation means an argument was rejected and nothing was sent
	KindValidation

	// KindWrite means the channel could not send the command
	KindWrite

	// KindNoResponse means the controller did not answer within the timeout
	KindNoResponse

	// KindProtocol means a reply arrived but could not be parsed
	KindProtocol

	// KindOther is any error not produced by this package, e.g. a canceled context
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindWrite:
		return "write failure"
	case KindNoResponse:
		return "no response"
	case KindProtocol:
		return "protocol violation"
	default:
		return "other"
	}
}

// ValidationError is generated when a parameter is out of range.
// No bytes are written to the controller when it is returned.
type ValidationError struct {
	Op     string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("m235: %s: parameter %v rejected, %s", e.Op, e.Value, e.Reason)
}

// WriteFailure is generated when the channel reports it could not send a command
type WriteFailure struct {
	Op  string
	Cmd string
	Err error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("m235: %s: error writing %q: %v", e.Op, e.Cmd, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }

// NoResponse is generated when a query receives an empty reply before the
// channel timeout, or the read itself fails
type NoResponse struct {
	Op  string
	Cmd string
	Err error
}

func (e *NoResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("m235: %s: device not responding to %q: %v", e.Op, e.Cmd, e.Err)
	}
	return fmt.Sprintf("m235: %s: device not responding to %q", e.Op, e.Cmd)
}

func (e *NoResponse) Unwrap() error { return e.Err }

// ProtocolViolation is generated when a reply arrives but its payload is not
// an integer after the echo prefix
type ProtocolViolation struct {
	Op   string
	Cmd  string
	Line string
	Err  error
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("m235: %s: cannot parse reply %q to %q: %v", e.Op, e.Line, e.Cmd, e.Err)
}

func (e *ProtocolViolation) Unwrap() error { return e.Err }

// KindOf returns the kind of err, looking through any wrapping
func KindOf(err error) ErrorKind {
	var (
		verr *ValidationError
		werr *WriteFailure
		nerr *NoResponse
		perr *ProtocolViolation
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &verr):
		return KindValidation
	case errors.As(err, &werr):
		return KindWrite
	case errors.As(err, &nerr):
		return KindNoResponse
	case errors.As(err, &perr):
		return KindProtocol
	default:
		return KindOther
	}
}
