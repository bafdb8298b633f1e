//go:build linux && amd64

package native

import (
	"github.com/pkg/errors"
	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/logflags"
	"github.com/go-deet/deet/pkg/proc"
)

// PatchByte overwrites the byte at addr with val and returns the byte that
// was there. ptrace only transfers whole words, so the word containing addr
// is read, the byte spliced in and the word written back.
func (dbp *Process) PatchByte(addr uint64, val byte) (byte, error) {
	if err := dbp.checkValid(); err != nil {
		return 0, err
	}
	aligned := alignAddrToWord(addr)

	var (
		word uint64
		err  error
	)
	dbp.execPtraceFunc(func() { word, err = ptracePeekWord(dbp.pid, uintptr(aligned)) })
	if err != nil {
		return 0, dbp.memoryError(err, addr, "PTRACE_PEEKDATA")
	}

	updated, orig := spliceByte(word, addr-aligned, val)
	dbp.execPtraceFunc(func() { err = ptracePokeWord(dbp.pid, uintptr(aligned), updated) })
	if err != nil {
		return 0, dbp.memoryError(err, addr, "PTRACE_POKEDATA")
	}
	if logflags.Native() {
		dbp.log.Debugf("patched %#x: %#02x -> %#02x", addr, orig, val)
	}
	return orig, nil
}

// ReadWord reads the machine word at addr.
func (dbp *Process) ReadWord(addr uint64) (uint64, error) {
	if err := dbp.checkValid(); err != nil {
		return 0, err
	}
	var (
		word uint64
		err  error
	)
	dbp.execPtraceFunc(func() { word, err = ptracePeekWord(dbp.pid, uintptr(addr)) })
	if err != nil {
		return 0, dbp.memoryError(err, addr, "PTRACE_PEEKDATA")
	}
	return word, nil
}

func (dbp *Process) memoryError(err error, addr uint64, request string) error {
	switch err {
	case sys.EIO, sys.EFAULT:
		return errors.WithStack(proc.ErrInvalidAddress{Addr: addr})
	}
	return dbp.ptraceError(err, request)
}
