package native

import (
	"fmt"

	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/proc"
)

// Regs is a wrapper for sys.PtraceRegs.
type Regs struct {
	regs *sys.PtraceRegs
}

// PC returns the value of RIP register.
func (r *Regs) PC() uint64 {
	return r.regs.Rip
}

// SP returns the value of RSP register.
func (r *Regs) SP() uint64 {
	return r.regs.Rsp
}

// BP returns the value of RBP register.
func (r *Regs) BP() uint64 {
	return r.regs.Rbp
}

// SetPC sets RIP to pc.
func (r *Regs) SetPC(pc uint64) {
	r.regs.Rip = pc
}

// Registers obtains the general purpose registers of the process.
func (dbp *Process) Registers() (proc.Registers, error) {
	if err := dbp.checkValid(); err != nil {
		return nil, err
	}
	var (
		regs sys.PtraceRegs
		err  error
	)
	dbp.execPtraceFunc(func() { err = sys.PtraceGetRegs(dbp.pid, &regs) })
	if err != nil {
		return nil, dbp.ptraceError(err, "PTRACE_GETREGS")
	}
	return &Regs{regs: &regs}, nil
}

// SetRegisters writes back a register snapshot returned by Registers.
func (dbp *Process) SetRegisters(r proc.Registers) error {
	if err := dbp.checkValid(); err != nil {
		return err
	}
	regs, ok := r.(*Regs)
	if !ok {
		return fmt.Errorf("unsupported register set %T", r)
	}
	var err error
	dbp.execPtraceFunc(func() { err = sys.PtraceSetRegs(dbp.pid, regs.regs) })
	if err != nil {
		return dbp.ptraceError(err, "PTRACE_SETREGS")
	}
	return nil
}
