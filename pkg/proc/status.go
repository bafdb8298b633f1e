package proc

import (
	"fmt"

	sys "golang.org/x/sys/unix"
)

// Status is the state a traced process reports after it was resumed or
// single-stepped. It is a closed set: Stopped, Exited and Signaled are the
// only implementations.
type Status interface {
	isStatus()
	fmt.Stringer
}

// Stopped means the process is stopped under the tracer. Signal is the
// signal that stopped it and PC the instruction pointer at the stop.
type Stopped struct {
	Signal sys.Signal
	PC     uint64
}

// Exited means the process exited normally with Code.
type Exited struct {
	Code int
}

// Signaled means the process was terminated by Signal.
type Signaled struct {
	Signal sys.Signal
}

func (Stopped) isStatus()  {}
func (Exited) isStatus()   {}
func (Signaled) isStatus() {}

func (s Stopped) String() string {
	return fmt.Sprintf("stopped (signal %s) at %#x", SignalName(s.Signal), s.PC)
}

func (s Exited) String() string {
	return fmt.Sprintf("exited (status %d)", s.Code)
}

func (s Signaled) String() string {
	return fmt.Sprintf("terminated (signal %s)", SignalName(s.Signal))
}

// Alive returns true if the status describes a process that still exists.
func Alive(s Status) bool {
	_, ok := s.(Stopped)
	return ok
}

// SignalName returns the conventional name of sig, e.g. "SIGTRAP".
func SignalName(sig sys.Signal) string {
	if name := sys.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}
