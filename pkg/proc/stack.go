package proc

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultMaxStackDepth bounds Stacktrace when no depth is configured, so a
// corrupt frame pointer chain can not make it loop forever.
const DefaultMaxStackDepth = 256

// unknownFunction is reported for frames that no function covers.
const unknownFunction = "??"

// SymbolLookup maps instruction addresses back to functions and source
// lines.
type SymbolLookup interface {
	FunctionAt(pc uint64) (string, bool)
	LineAt(pc uint64) (file string, line int, ok bool)
}

// Stackframe represents a frame in a system stack.
type Stackframe struct {
	// Address the function above this one on the call stack will return to,
	// or the current instruction pointer for the innermost frame.
	PC uint64
	// Frame base (saved frame pointer) of this frame.
	BP uint64

	Function string
	File     string
	Line     int
}

// Location formats the source position of the frame as file:line.
func (frame *Stackframe) Location() string {
	if frame.File == "" {
		return fmt.Sprintf("%#x", frame.PC)
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// Stacktrace walks the saved frame pointers of p, starting from its current
// instruction pointer and frame base, until it reaches the entry function.
// Frames are returned innermost first.
//
// The target must have been compiled with frame pointers: the return
// address of each frame is read from the word above the frame base and the
// caller's frame base from the word at the frame base.
func Stacktrace(p Process, syms SymbolLookup, entry string, depth int) ([]Stackframe, error) {
	if depth <= 0 {
		depth = DefaultMaxStackDepth
	}
	regs, err := p.Registers()
	if err != nil {
		return nil, err
	}

	pc, bp := regs.PC(), regs.BP()
	frames := make([]Stackframe, 0, 8)
	for len(frames) < depth {
		frame := Stackframe{PC: pc, BP: bp, Function: unknownFunction}

		// Return addresses point past the call instruction, which may
		// already belong to the next line.
		lookup := pc
		if len(frames) > 0 && lookup > 0 {
			lookup--
		}
		fn, ok := syms.FunctionAt(lookup)
		if ok {
			frame.Function = fn
		}
		if file, line, lok := syms.LineAt(lookup); lok {
			frame.File, frame.Line = file, line
		}
		frames = append(frames, frame)

		if !ok || fn == entry || bp == 0 {
			break
		}

		pc, err = p.ReadWord(bp + PtrSize)
		if err != nil {
			return frames, errors.Wrapf(err, "could not read return address of frame %d", len(frames)-1)
		}
		bp, err = p.ReadWord(bp)
		if err != nil {
			return frames, errors.Wrapf(err, "could not read frame base of frame %d", len(frames)-1)
		}
	}
	return frames, nil
}
