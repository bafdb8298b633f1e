// Package symbols resolves source lines and function names of a target
// executable to addresses and back, using the DWARF information of the
// executable.
package symbols

import (
	"fmt"
)

// Resolver is the symbol resolution service the debugger consumes.
type Resolver interface {
	// AddressForLine returns the address of the first instruction of line
	// in file. An empty file means the file that defines the entry
	// function.
	AddressForLine(file string, line int) (uint64, bool)
	// AddressForFunction returns the address of the first instruction
	// after the prologue of the named function.
	AddressForFunction(name string) (uint64, bool)
	// FunctionAt returns the name of the function containing addr.
	FunctionAt(addr uint64) (string, bool)
	// LineAt returns the source position of addr.
	LineAt(addr uint64) (file string, line int, ok bool)
}

// Location is a source position.
type Location struct {
	File string
	Line int
}

func (loc Location) String() string {
	return fmt.Sprintf("%s:%d", loc.File, loc.Line)
}

// Function is a function described by the debug information.
type Function struct {
	Name     string
	Entry    uint64 // low pc
	End      uint64 // high pc, exclusive
	DeclFile string
}

// ErrNoDebugInfo is returned when the executable can not be opened or has
// no usable DWARF information.
type ErrNoDebugInfo struct {
	Path string
	Err  error
}

func (e *ErrNoDebugInfo) Error() string {
	return fmt.Sprintf("could not read debugging symbols from %s: %v", e.Path, e.Err)
}

func (e *ErrNoDebugInfo) Unwrap() error {
	return e.Err
}
