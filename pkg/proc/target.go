package proc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProcess is returned by operations that need a live process when
	// none has been started.
	ErrNoProcess = errors.New("the target process is not running")

	// ErrNotStopped is returned when an operation needs the target to be
	// stopped and it isn't.
	ErrNotStopped = errors.New("the target process is not stopped")
)

// ErrProcessExited indicates that the process has exited and contains both
// process id and exit status.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has exited with status %d", pe.Pid, pe.Status)
}

// ErrInvalidAddress represents the result of attempting to access memory
// that is not mapped in the target.
type ErrInvalidAddress struct {
	Addr uint64
}

func (iae ErrInvalidAddress) Error() string {
	return fmt.Sprintf("invalid address %#x", iae.Addr)
}

// IsInvalidAddress reports whether err, or any error it wraps, is an
// ErrInvalidAddress.
func IsInvalidAddress(err error) bool {
	var iae ErrInvalidAddress
	return errors.As(err, &iae)
}

// IsProcessGone reports whether err means the process no longer exists, as
// opposed to a bad address or other tracing failure.
func IsProcessGone(err error) bool {
	var pe ErrProcessExited
	return errors.Is(err, ErrNoProcess) || errors.As(err, &pe)
}
