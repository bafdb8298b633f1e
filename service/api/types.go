package api

// ProcessState is the state of the debugging session with respect to the
// target process.
type ProcessState int

const (
	// NoProcess means no process was started yet, or the last one could
	// not be started.
	NoProcess ProcessState = iota
	// Running means the process is executing.
	Running
	// StoppedAtBreakpoint means the process stopped on one of the
	// breakpoints.
	StoppedAtBreakpoint
	// StoppedOther means the process stopped for any other reason, usually
	// a signal.
	StoppedOther
	// Exited means the process exited or was terminated by a signal.
	Exited
)

func (s ProcessState) String() string {
	switch s {
	case NoProcess:
		return "no process"
	case Running:
		return "running"
	case StoppedAtBreakpoint:
		return "stopped at breakpoint"
	case StoppedOther:
		return "stopped"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// Stopped returns true if a process exists and is stopped.
func (s ProcessState) Stopped() bool {
	return s == StoppedAtBreakpoint || s == StoppedOther
}

// DebuggerState represents the current context of the debugger.
type DebuggerState struct {
	// Pid is the process ID of the target, zero if there is none.
	Pid int `json:"pid"`
	// State of the target process.
	State ProcessState `json:"state"`
	// Signal is the name of the signal that stopped the process or, once
	// the process is gone, of the signal that terminated it.
	Signal string `json:"signal,omitempty"`
	// Exited indicates whether the debugged process has exited.
	Exited     bool `json:"exited"`
	ExitStatus int  `json:"exitStatus"`
	// Signaled is true if the process was terminated by Signal.
	Signaled bool `json:"signaled"`
	// Breakpoint is the current breakpoint at which the debugged process is
	// suspended, and may be empty if the process is not suspended.
	Breakpoint *Breakpoint `json:"breakPoint,omitempty"`
	// Location is where the process is stopped.
	Location *Location `json:"location,omitempty"`
}

// Breakpoint addresses a location at which process execution may be
// suspended.
type Breakpoint struct {
	// ID is a unique identifier for the breakpoint.
	ID int `json:"id"`
	// Addr is the address of the breakpoint.
	Addr uint64 `json:"addr"`
	// File is the source file for the breakpoint.
	File string `json:"file"`
	// Line is a line in File for the breakpoint.
	Line int `json:"line"`
	// FunctionName is the name of the function at the current breakpoint, and
	// may not always be available.
	FunctionName string `json:"functionName,omitempty"`
	// Installed is true while the trap is written in the target.
	Installed bool `json:"installed"`
}

// Location is a program location.
type Location struct {
	PC       uint64 `json:"pc"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
}

// Stackframe describes one frame in a stack trace.
type Stackframe struct {
	Location
	// FrameBase is the saved frame pointer of the frame.
	FrameBase uint64 `json:"frameBase"`
}

// DiscardedBreakpoint is a breakpoint that could not be installed when the
// target was (re)started. It stays in the breakpoint table.
type DiscardedBreakpoint struct {
	Breakpoint *Breakpoint `json:"breakpoint"`
	Reason     string      `json:"reason"`
}
