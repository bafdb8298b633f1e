//go:build linux && amd64

// Package native implements the traced-process handle on top of ptrace(2).
package native

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/logflags"
	"github.com/go-deet/deet/pkg/proc"
)

// Process represents all of the information the debugger
// is holding onto regarding the process we are debugging.
type Process struct {
	pid     int         // Process Pid
	process *os.Process // Handle returned by the launch, released on exit

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	// pendingSignal is delivered to the process on the next Resume.
	pendingSignal sys.Signal

	exited     bool
	exitStatus int

	log *logrus.Entry
}

var _ proc.Process = (*Process)(nil)

// newProcess returns an initialized Process struct. Before returning,
// it will also launch a goroutine in order to handle ptrace(2)
// functions. For more information, see the documentation on
// `handlePtraceFuncs`.
func newProcess(pid int) *Process {
	dbp := &Process{
		pid:            pid,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.NativeLogger(),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *Process) Pid() int {
	return dbp.pid
}

// Exited returns whether the debugged
// process has exited.
func (dbp *Process) Exited() bool {
	return dbp.exited
}

// Kill kills the target process and reaps it.
func (dbp *Process) Kill() error {
	if dbp.exited {
		return nil
	}
	dbp.log.Debugf("killing %d", dbp.pid)
	if err := sys.Kill(dbp.pid, sys.SIGKILL); err != nil && err != sys.ESRCH {
		return err
	}
	return dbp.reap()
}

// reap waits until the process is gone, discarding any stop reported in the
// meantime.
func (dbp *Process) reap() error {
	for {
		var ws sys.WaitStatus
		_, err := sys.Wait4(dbp.pid, &ws, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err == sys.ECHILD {
			dbp.postExit(-1)
			return nil
		}
		if err != nil {
			return err
		}
		if ws.Exited() {
			dbp.postExit(ws.ExitStatus())
			return nil
		}
		if ws.Signaled() {
			dbp.postExit(-1)
			return nil
		}
	}
}

func (dbp *Process) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_TRACEME to come from the thread that forked the tracee.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
}

func (dbp *Process) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

func (dbp *Process) postExit(status int) {
	if dbp.exited {
		return
	}
	dbp.exited = true
	dbp.exitStatus = status
	if dbp.process != nil {
		_ = dbp.process.Release()
	}
	close(dbp.ptraceChan)
	close(dbp.ptraceDoneChan)
}

func (dbp *Process) checkValid() error {
	if dbp.exited {
		return proc.ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
	}
	return nil
}
