package protocol

import (
	"errors"
	"fmt"
	"os"
)

// Process exit codes of start-up failures.
const (
	ExitSocket = 1
	ExitNoPort = 2
	ExitListen = 3
	ExitAccept = 4
)

// FatalError ends the process with Code.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal (exit %d): %v", e.Code, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err with an exit code.
func Fatal(code int, err error) error {
	return &FatalError{Code: code, Err: err}
}

// ExitCode returns the exit code carried by err, or 0 when err is nil and 1
// for any other error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 1
}

// syscallOf returns the name of the failing system call in err, if any.
func syscallOf(err error) string {
	var se *os.SyscallError
	if errors.As(err, &se) {
		return se.Syscall
	}
	return ""
}

var (
	// ErrNotConnected is returned by Send before a connection is accepted
	// or after it was lost.
	ErrNotConnected = errors.New("runtime not connected")
	// ErrBadSecret marks a header that does not start with the secret.
	ErrBadSecret = errors.New("header does not carry the secret")
	// ErrAlreadyListening rejects a second listener.
	ErrAlreadyListening = errors.New("listener already started")
)
