package proc

// Registers is an interface for a generic register type. The
// interface encapsulates the generic values / actions
// we need independent of arch.
type Registers interface {
	PC() uint64
	SP() uint64
	BP() uint64
	// SetPC changes the instruction pointer of this snapshot. It takes
	// effect in the process once the snapshot is written back with
	// SetRegisters.
	SetPC(uint64)
}
