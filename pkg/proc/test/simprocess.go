package test

import (
	"encoding/binary"

	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/proc"
)

// SimProgram describes a program that a SimProcess executes. It exists so
// that the debugger logic can be tested without ptrace.
type SimProgram struct {
	// Memory is the initial memory image. Addresses missing from it are
	// unmapped.
	Memory map[uint64]byte
	// Trace lists, in execution order, the addresses of the instructions
	// the program executes when nothing interferes with it.
	Trace []uint64
	// ExitCode is reported once every instruction of Trace has executed.
	ExitCode int
	// SP and BP are the initial stack and frame pointers.
	SP, BP uint64
}

// Map copies data into the memory image at addr.
func (prog *SimProgram) Map(addr uint64, data []byte) {
	if prog.Memory == nil {
		prog.Memory = make(map[uint64]byte)
	}
	for i, b := range data {
		prog.Memory[addr+uint64(i)] = b
	}
}

// MapWord stores a little endian word at addr.
func (prog *SimProgram) MapWord(addr, word uint64) {
	var buf [proc.PtrSize]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	prog.Map(addr, buf[:])
}

// Start returns a new process running prog from a pristine copy of its
// memory image, stopped before its first instruction.
func (prog *SimProgram) Start(pid int) *SimProcess {
	mem := make(map[uint64]byte, len(prog.Memory))
	for k, v := range prog.Memory {
		mem[k] = v
	}
	p := &SimProcess{pid: pid, prog: prog, Mem: mem}
	p.regs.sp, p.regs.bp = prog.SP, prog.BP
	if len(prog.Trace) > 0 {
		p.regs.pc = prog.Trace[0]
	}
	return p
}

// SimProcess is an in-memory implementation of proc.Process.
type SimProcess struct {
	pid  int
	prog *SimProgram
	pos  int // index in prog.Trace of the next instruction

	regs simRegs

	// Mem is the current memory image.
	Mem map[uint64]byte
	// Executed lists the instructions that really executed, traps
	// excluded.
	Executed []uint64
	// Patches counts PatchByte calls.
	Patches int

	exited   bool
	killed   bool
	detached bool
}

var _ proc.Process = (*SimProcess)(nil)

// Pid returns the process ID.
func (p *SimProcess) Pid() int { return p.pid }

// Exited returns true once the process exited or was killed.
func (p *SimProcess) Exited() bool { return p.exited }

// Killed returns true if Kill terminated the process.
func (p *SimProcess) Killed() bool { return p.killed }

// Resume runs until a trap byte is executed or the trace ends.
func (p *SimProcess) Resume() (proc.Status, error) {
	if p.exited {
		return nil, proc.ErrProcessExited{Pid: p.pid}
	}
	for {
		st, stopped := p.step()
		if stopped || !proc.Alive(st) {
			return st, nil
		}
	}
}

// SingleStep executes one instruction.
func (p *SimProcess) SingleStep() (proc.Status, error) {
	if p.exited {
		return nil, proc.ErrProcessExited{Pid: p.pid}
	}
	st, _ := p.step()
	return st, nil
}

// step executes the instruction at the current position. It returns true if
// the instruction was a trap.
func (p *SimProcess) step() (proc.Status, bool) {
	if p.pos >= len(p.prog.Trace) {
		p.exited = true
		return proc.Exited{Code: p.prog.ExitCode}, false
	}
	addr := p.prog.Trace[p.pos]
	p.pos++
	if p.Mem[addr] == proc.TrapByte {
		p.regs.pc = addr + proc.TrapWidth
		return proc.Stopped{Signal: sys.SIGTRAP, PC: p.regs.pc}, true
	}
	p.Executed = append(p.Executed, addr)
	if p.pos >= len(p.prog.Trace) {
		// the last instruction of the trace is the exit system call
		p.exited = true
		return proc.Exited{Code: p.prog.ExitCode}, false
	}
	p.regs.pc = p.prog.Trace[p.pos]
	return proc.Stopped{Signal: sys.SIGTRAP, PC: p.regs.pc}, false
}

// Registers returns a snapshot of the simulated registers.
func (p *SimProcess) Registers() (proc.Registers, error) {
	if p.exited {
		return nil, proc.ErrProcessExited{Pid: p.pid}
	}
	r := p.regs
	return &r, nil
}

// SetRegisters writes the registers back. Moving the instruction pointer
// back onto the instruction that just trapped rewinds the trace by one.
func (p *SimProcess) SetRegisters(r proc.Registers) error {
	if p.exited {
		return proc.ErrProcessExited{Pid: p.pid}
	}
	if p.pos > 0 && r.PC() == p.prog.Trace[p.pos-1] && r.PC() != p.regs.pc {
		p.pos--
	}
	p.regs = simRegs{pc: r.PC(), sp: r.SP(), bp: r.BP()}
	return nil
}

// SetBP changes the simulated frame pointer.
func (p *SimProcess) SetBP(bp uint64) { p.regs.bp = bp }

// PatchByte writes val at addr, failing for unmapped addresses.
func (p *SimProcess) PatchByte(addr uint64, val byte) (byte, error) {
	if p.exited {
		return 0, proc.ErrProcessExited{Pid: p.pid}
	}
	orig, ok := p.Mem[addr]
	if !ok {
		return 0, proc.ErrInvalidAddress{Addr: addr}
	}
	p.Mem[addr] = val
	p.Patches++
	return orig, nil
}

// ReadWord reads a little endian word at addr.
func (p *SimProcess) ReadWord(addr uint64) (uint64, error) {
	if p.exited {
		return 0, proc.ErrProcessExited{Pid: p.pid}
	}
	var buf [proc.PtrSize]byte
	for i := range buf {
		b, ok := p.Mem[addr+uint64(i)]
		if !ok {
			return 0, proc.ErrInvalidAddress{Addr: addr + uint64(i)}
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Kill terminates the process.
func (p *SimProcess) Kill() error {
	if !p.exited {
		p.killed = true
	}
	p.exited = true
	return nil
}

// Detach runs the rest of the trace untraced.
func (p *SimProcess) Detach() error {
	if p.exited {
		return proc.ErrProcessExited{Pid: p.pid}
	}
	for p.pos < len(p.prog.Trace) {
		p.Executed = append(p.Executed, p.prog.Trace[p.pos])
		p.pos++
	}
	p.exited = true
	p.detached = true
	return nil
}

// Detached returns true if Detach was called.
func (p *SimProcess) Detached() bool { return p.detached }

type simRegs struct {
	pc, sp, bp uint64
}

func (r *simRegs) PC() uint64      { return r.pc }
func (r *simRegs) SP() uint64      { return r.sp }
func (r *simRegs) BP() uint64      { return r.bp }
func (r *simRegs) SetPC(pc uint64) { r.pc = pc }
