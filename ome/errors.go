package ome

import (
	"errors"
	"fmt"
)

// Exit codes used by the command line for usage errors.
const (
	DefaultUsageCode  = 2
	NotAdminCode      = 111
	NegativeQuotaCode = 600
)

var (
	ErrNotFound           = errors.New("object not found")
	ErrNotAdmin           = errors.New("admin privileges required")
	ErrStillRunning       = errors.New("operation still running")
	ErrSessionClosed      = errors.New("session closed")
	ErrIncompatibleServer = errors.New("incompatible server version")
	ErrBadCredentials     = errors.New("bad user name or password")
)

// UsageError is an error due to how a command was invoked.  It is fatal to the current
// command but not to the process; Code is used as exit status.
type UsageError struct {
	Code int
	Msg  string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// NewUsageError returns a UsageError with the default exit code.
func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Code: DefaultUsageCode, Msg: fmt.Sprintf(format, args...)}
}

// RemoteError is an error response computed by the server for an asynchronous request.
type RemoteError struct {
	Name       string
	Message    string
	Parameters map[string]string
}

func (e *RemoteError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// DataError aborts an operation because the data it was given cannot be processed,
// e.g., an image with a pixel type the server doesn't know.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string {
	return e.Msg
}

func NewDataError(format string, args ...interface{}) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode returns the exit status for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return 1
}
