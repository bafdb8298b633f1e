//go:build linux && amd64

package native

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/logflags"
	"github.com/go-deet/deet/pkg/proc"
)

// LaunchOptions configures how the target is started.
type LaunchOptions struct {
	// WorkingDir is the working directory of the target, empty means the
	// debugger's own.
	WorkingDir string
	// TTY, if set, is the path of a terminal device used as the target's
	// stdin, stdout, stderr and controlling terminal.
	TTY string
}

// Launch creates and begins debugging a new process. First entry in
// `cmd` is the program to run, and then rest are the arguments
// to be supplied to that process.
//
// The child requests to be traced before it executes the target, so the
// returned process is stopped before the target's first instruction.
func Launch(cmd []string, opts LaunchOptions) (*Process, error) {
	if len(cmd) == 0 {
		return nil, errors.New("no command to launch")
	}

	stdin, stdout, stderr := os.Stdin, os.Stdout, os.Stderr
	var tty *os.File
	if opts.TTY != "" {
		var err error
		tty, err = os.OpenFile(opts.TTY, os.O_RDWR, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open tty %s", opts.TTY)
		}
		defer tty.Close()
		stdin, stdout, stderr = tty, tty, tty
	}

	var (
		process *exec.Cmd
		err     error
	)
	dbp := newProcess(0)
	dbp.execPtraceFunc(func() {
		process = exec.Command(cmd[0])
		process.Args = cmd
		process.Stdin = stdin
		process.Stdout = stdout
		process.Stderr = stderr
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if tty != nil {
			process.SysProcAttr.Setsid = true
			process.SysProcAttr.Setctty = true
			process.SysProcAttr.Ctty = 0
		}
		if opts.WorkingDir != "" {
			process.Dir = opts.WorkingDir
		}
		err = process.Start()
	})
	if err != nil {
		dbp.postExit(-1)
		return nil, errors.Wrapf(err, "could not launch %s", cmd[0])
	}
	dbp.pid = process.Process.Pid
	dbp.process = process.Process
	dbp.log.Debugf("launched %v as pid %d", cmd, dbp.pid)

	st, err := dbp.wait()
	if err != nil {
		_ = dbp.Kill()
		return nil, errors.Wrap(err, "waiting for target execve failed")
	}
	if !proc.Alive(st) {
		return nil, fmt.Errorf("target %s before its first instruction", st)
	}
	dbp.pendingSignal = 0
	return dbp, nil
}

// Resume lets the process run until it changes state, delivering the
// signal of the previous stop if it was not caused by the debugger.
func (dbp *Process) Resume() (proc.Status, error) {
	if err := dbp.checkValid(); err != nil {
		return nil, err
	}
	sig := dbp.pendingSignal
	dbp.pendingSignal = 0
	var err error
	dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, int(sig)) })
	if err != nil {
		return nil, dbp.ptraceError(err, "PTRACE_CONT")
	}
	return dbp.wait()
}

// SingleStep executes exactly one instruction of the process.
func (dbp *Process) SingleStep() (proc.Status, error) {
	if err := dbp.checkValid(); err != nil {
		return nil, err
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, 0) })
	if err != nil {
		return nil, dbp.ptraceError(err, "PTRACE_SINGLESTEP")
	}
	return dbp.wait()
}

// Detach stops tracing the process, delivering any pending signal, and
// releases the handle. The process keeps running.
func (dbp *Process) Detach() error {
	if err := dbp.checkValid(); err != nil {
		return err
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceDetach(dbp.pid, int(dbp.pendingSignal)) })
	if err != nil {
		return dbp.ptraceError(err, "PTRACE_DETACH")
	}
	dbp.log.Debugf("detached from %d", dbp.pid)
	dbp.postExit(0)
	return nil
}

// wait blocks until the process changes state and classifies the result.
func (dbp *Process) wait() (proc.Status, error) {
	var ws sys.WaitStatus
	for {
		_, err := sys.Wait4(dbp.pid, &ws, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "wait4 on %d", dbp.pid)
		}
		break
	}

	switch {
	case ws.Exited():
		dbp.log.Debugf("%d exited with status %d", dbp.pid, ws.ExitStatus())
		dbp.postExit(ws.ExitStatus())
		return proc.Exited{Code: ws.ExitStatus()}, nil
	case ws.Signaled():
		dbp.log.Debugf("%d killed by %s", dbp.pid, proc.SignalName(ws.Signal()))
		dbp.postExit(-1)
		return proc.Signaled{Signal: ws.Signal()}, nil
	case ws.Stopped():
		sig := ws.StopSignal()
		regs, err := dbp.Registers()
		if err != nil {
			return nil, err
		}
		if forwardSignal(sig) {
			dbp.pendingSignal = sig
		}
		if logflags.Native() {
			dbp.log.Debugf("%d stopped by %s at %#x", dbp.pid, proc.SignalName(sig), regs.PC())
		}
		return proc.Stopped{Signal: sig, PC: regs.PC()}, nil
	}
	// Only exits, deaths and stops are reported without WCONTINUED or
	// ptrace event options.
	panic(fmt.Sprintf("wait4 returned unexpected status %#x for pid %d", uint32(ws), dbp.pid))
}

// forwardSignal returns true for signals that belong to the target rather
// than to the debugger.
func forwardSignal(sig sys.Signal) bool {
	switch sig {
	case sys.SIGTRAP, sys.SIGSTOP, sys.SIGINT:
		return false
	}
	return true
}

// ptraceError converts errors of ptrace requests so that callers can tell a
// vanished process apart from other failures.
func (dbp *Process) ptraceError(err error, request string) error {
	if err == sys.ESRCH {
		return errors.Wrapf(proc.ErrNoProcess, "%s on %d: no such process", request, dbp.pid)
	}
	return errors.Wrapf(err, "%s on %d", request, dbp.pid)
}
