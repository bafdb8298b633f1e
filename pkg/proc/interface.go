package proc

// Process represents a single traced child process. Implementations are not
// safe for concurrent use: the debugger issues one operation at a time and
// blocks on it.
type Process interface {
	Info
	ProcessManipulation
	MemoryReadWriter
}

// Info is an interface that provides general information on the target.
type Info interface {
	Pid() int
	// Exited returns true once the process has exited or been killed and
	// reaped. Every other operation fails after that.
	Exited() bool
}

// ProcessManipulation is an interface for changing the execution state of
// a process.
type ProcessManipulation interface {
	// Resume lets the process run until it stops, exits or is killed by a
	// signal.
	Resume() (Status, error)
	// SingleStep executes exactly one machine instruction.
	SingleStep() (Status, error)
	// Registers returns a snapshot of the general purpose registers.
	Registers() (Registers, error)
	// SetRegisters writes back a snapshot obtained from Registers.
	SetRegisters(Registers) error
	// Kill forcibly terminates the process. Killing an exited process is
	// not an error.
	Kill() error
	// Detach stops tracing the process and lets it run freely. Breakpoints
	// must be cleared first.
	Detach() error
}

// MemoryReadWriter is the memory access interface of a traced process.
type MemoryReadWriter interface {
	// PatchByte writes val at addr and returns the byte that was there.
	PatchByte(addr uint64, val byte) (byte, error)
	// ReadWord reads one machine word at addr.
	ReadWord(addr uint64) (uint64, error)
}
