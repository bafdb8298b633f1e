//go:build linux && amd64

package native

import (
	"encoding/binary"

	sys "golang.org/x/sys/unix"
)

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptracePeekWord reads the word at addr with PTRACE_PEEKDATA.
func ptracePeekWord(pid int, addr uintptr) (uint64, error) {
	var buf [wordSize]byte
	if _, err := sys.PtracePeekData(pid, addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ptracePokeWord writes the word at addr with PTRACE_POKEDATA. addr must
// be word aligned so that a single request is issued.
func ptracePokeWord(pid int, addr uintptr, word uint64) error {
	var buf [wordSize]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	_, err := sys.PtracePokeData(pid, addr, buf[:])
	return err
}
