package proc

// Architecture constants for linux/amd64, the only supported target.
const (
	// TrapByte is the INT 3 instruction, the software breakpoint trap.
	TrapByte byte = 0xCC

	// TrapWidth is the number of bytes the instruction pointer advances
	// after executing the trap, before the tracer observes the stop.
	TrapWidth uint64 = 1

	// PtrSize is the size of a machine word in the target.
	PtrSize = 8
)
