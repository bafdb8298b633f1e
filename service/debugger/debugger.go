package debugger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/locspec"
	"github.com/go-deet/deet/pkg/logflags"
	"github.com/go-deet/deet/pkg/proc"
	"github.com/go-deet/deet/pkg/symbols"
	"github.com/go-deet/deet/service/api"
)

// Debugger service.
//
// Debugger provides a higher level of
// abstraction over proc.Process.
// It handles converting from internal types to
// the types expected by clients. It owns the traced process and the
// breakpoint table, which outlives any single process.
type Debugger struct {
	config *Config
	// arguments to launch a new process.
	processArgs []string
	syms        symbols.Resolver

	processMutex sync.Mutex
	target       proc.Process
	breakpoints  *proc.BreakpointMap
	log          *logrus.Entry

	state     api.ProcessState
	lastPid   int
	lastStop  proc.Status
	currentBp *proc.Breakpoint

	// pid of the process while it is resumed
	running      int
	runningMutex sync.Mutex
}

// LaunchFunc starts cmd as a traced process, stopped before its first
// instruction.
type LaunchFunc func(cmd []string, workingDir, tty string) (proc.Process, error)

// Config provides the configuration to start a Debugger.
type Config struct {
	// WorkingDir is working directory of the new process.
	WorkingDir string

	// TTY is the terminal device used as the target's standard streams,
	// empty means the debugger's own.
	TTY string

	// EntryFunction is the function stack traces stop at.
	EntryFunction string

	// MaxStackDepth limits the number of frames of a stack trace.
	MaxStackDepth int

	// Launch starts processes, nil means the ptrace backend.
	Launch LaunchFunc
}

// New creates a new Debugger. processArgs[0] is the target executable and
// the rest its default arguments; no process is started until Run.
func New(config *Config, syms symbols.Resolver, processArgs []string) (*Debugger, error) {
	if len(processArgs) == 0 {
		return nil, errors.New("no target executable")
	}
	if config == nil {
		config = &Config{}
	}
	if config.Launch == nil {
		config.Launch = nativeLaunch
	}
	if config.EntryFunction == "" {
		config.EntryFunction = symbols.DefaultEntryFunction
	}
	d := &Debugger{
		config:      config,
		processArgs: processArgs,
		syms:        syms,
		breakpoints: proc.NewBreakpointMap(),
		log:         logflags.DebuggerLogger(),
		state:       api.NoProcess,
	}
	return d, nil
}

// ProcessPid returns the PID of the process
// the debugger is debugging, zero if there is none.
func (d *Debugger) ProcessPid() int {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()
	if d.target == nil {
		return 0
	}
	return d.target.Pid()
}

// Detach ends the session: the process is killed if kill is true,
// otherwise its breakpoints are removed and it is let go.
func (d *Debugger) Detach(kill bool) error {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()
	return d.detach(kill)
}

func (d *Debugger) detach(kill bool) error {
	if d.target == nil {
		return nil
	}
	p := d.target
	var err error
	if kill || p.Exited() {
		d.log.Debugf("killing %d", p.Pid())
		err = p.Kill()
	} else {
		d.log.Debugf("detaching from %d", p.Pid())
		err = d.detachRunning(p)
	}
	d.breakpoints.Reset()
	d.lastPid = p.Pid()
	d.target = nil
	d.currentBp = nil
	d.state = api.NoProcess
	return err
}

// detachRunning restores every patched byte and rewinds the instruction
// pointer if the process sits right after a trap, then detaches.
func (d *Debugger) detachRunning(p proc.Process) error {
	var result *multierror.Error
	if bp := d.currentBreakpoint(); bp != nil {
		if err := d.rewind(bp); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, bp := range d.breakpoints.List() {
		if !bp.Installed() {
			continue
		}
		if _, err := p.PatchByte(bp.Addr, bp.OriginalData); err != nil {
			result = multierror.Append(result, pkgerrors.Wrapf(err, "could not clear breakpoint %d", bp.ID))
		}
	}
	if err := p.Detach(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Run (re)starts the target. A live process is killed first. If args is
// empty the arguments of the previous run, or the ones given to New, are
// used. Breakpoints that could not be installed are returned as discarded
// and the process runs regardless.
func (d *Debugger) Run(args []string) (*api.DebuggerState, []api.DiscardedBreakpoint, error) {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()

	if err := d.detach(true); err != nil {
		d.log.Warnf("could not kill previous process: %v", err)
	}
	d.state = api.NoProcess
	d.lastStop = nil
	if len(args) > 0 {
		d.processArgs = append([]string{d.processArgs[0]}, args...)
	}

	d.log.Infof("launching process with args: %v", d.processArgs)
	p, err := d.config.Launch(d.processArgs, d.config.WorkingDir, d.config.TTY)
	if err != nil {
		return nil, nil, err
	}
	d.target = p

	discarded, err := d.discardedBreakpoints(d.breakpoints.InstallAll(p))
	if err != nil {
		if kerr := d.detach(true); kerr != nil {
			d.log.Warnf("could not kill process: %v", kerr)
		}
		return nil, nil, err
	}

	state, err := d.resume()
	return state, discarded, err
}

// discardedBreakpoints turns the result of InstallAll into the list of
// breakpoints that were left out. Any failure other than an install error
// is returned as is.
func (d *Debugger) discardedBreakpoints(err error) ([]api.DiscardedBreakpoint, error) {
	if err == nil {
		return nil, nil
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return nil, err
	}
	var discarded []api.DiscardedBreakpoint
	for _, err := range merr.Errors {
		var ie *proc.InstallError
		if !errors.As(err, &ie) {
			return nil, err
		}
		d.log.Warnf("%v", ie)
		discarded = append(discarded, api.DiscardedBreakpoint{
			Breakpoint: api.ConvertBreakpoint(ie.Breakpoint),
			Reason:     ie.Err.Error(),
		})
	}
	return discarded, nil
}

// Continue resumes the stopped target until the next stop. If the target
// is sitting on a breakpoint the original instruction is executed first.
func (d *Debugger) Continue() (*api.DebuggerState, error) {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()

	if d.target == nil {
		return nil, proc.ErrNoProcess
	}

	regs, err := d.target.Registers()
	if err != nil {
		return nil, err
	}
	if bp := d.breakpoints.AtStop(regs.PC()); bp != nil {
		if logflags.Debugger() {
			d.log.Debugf("stepping over breakpoint %d at %#x", bp.ID, bp.Addr)
		}
		st, err := d.breakpoints.StepOver(d.target, bp)
		if err != nil {
			return nil, err
		}
		if !proc.Alive(st) {
			return d.classify(st), nil
		}
		if s := st.(proc.Stopped); s.Signal != sys.SIGTRAP {
			// a signal arrived during the step, report it instead of
			// running on
			return d.classify(st), nil
		}
	}

	d.log.Debug("continuing")
	return d.resume()
}

func (d *Debugger) resume() (*api.DebuggerState, error) {
	d.setRunning(d.target.Pid())
	st, err := d.target.Resume()
	d.setRunning(0)
	if err != nil {
		if proc.IsProcessGone(err) {
			d.breakpoints.Reset()
			d.lastPid = d.target.Pid()
			d.target = nil
			d.state = api.NoProcess
		}
		return nil, err
	}
	return d.classify(st), nil
}

// classify records the new status of the target. A stop is at a
// breakpoint if the instruction before the stop address is a trap the
// debugger installed.
func (d *Debugger) classify(st proc.Status) *api.DebuggerState {
	d.lastStop = st
	d.currentBp = nil
	switch s := st.(type) {
	case proc.Stopped:
		d.state = api.StoppedOther
		if s.Signal == sys.SIGTRAP {
			if bp := d.breakpoints.AtStop(s.PC); bp != nil {
				d.currentBp = bp
				d.state = api.StoppedAtBreakpoint
			}
		}
		d.log.Debugf("process %d %s", d.target.Pid(), s)
	case proc.Exited, proc.Signaled:
		d.log.Debugf("process %d %s", d.target.Pid(), s)
		d.breakpoints.Reset()
		d.lastPid = d.target.Pid()
		d.target = nil
		d.state = api.Exited
	}
	return d.stateLocked()
}

// State returns the current state of the debugger.
func (d *Debugger) State() *api.DebuggerState {
	if pid := d.runningPid(); pid != 0 {
		return &api.DebuggerState{Pid: pid, State: api.Running}
	}
	d.processMutex.Lock()
	defer d.processMutex.Unlock()
	return d.stateLocked()
}

func (d *Debugger) stateLocked() *api.DebuggerState {
	state := &api.DebuggerState{State: d.state}
	if d.target != nil {
		state.Pid = d.target.Pid()
	} else {
		state.Pid = d.lastPid
	}
	switch s := d.lastStop.(type) {
	case proc.Stopped:
		state.Signal = proc.SignalName(s.Signal)
		loc := d.location(s.PC)
		if d.currentBp != nil {
			state.Breakpoint = api.ConvertBreakpoint(d.currentBp)
			loc = d.location(d.currentBp.Addr)
		}
		state.Location = loc
	case proc.Exited:
		state.Exited = true
		state.ExitStatus = s.Code
	case proc.Signaled:
		state.Exited = true
		state.Signaled = true
		state.Signal = proc.SignalName(s.Signal)
	}
	return state
}

func (d *Debugger) location(pc uint64) *api.Location {
	loc := &api.Location{PC: pc}
	loc.Function, _ = d.syms.FunctionAt(pc)
	loc.File, loc.Line, _ = d.syms.LineAt(pc)
	return loc
}

func (d *Debugger) currentBreakpoint() *proc.Breakpoint {
	if d.state != api.StoppedAtBreakpoint {
		return nil
	}
	return d.currentBp
}

// rewind moves the instruction pointer back onto the address of bp, as if
// the trap had not executed.
func (d *Debugger) rewind(bp *proc.Breakpoint) error {
	regs, err := d.target.Registers()
	if err != nil {
		return err
	}
	regs.SetPC(bp.Addr)
	return d.target.SetRegisters(regs)
}

// CreateBreakpoint resolves locStr and adds a breakpoint there. If a
// process exists the trap is written immediately; if that fails nothing is
// added.
func (d *Debugger) CreateBreakpoint(locStr string) (*api.Breakpoint, error) {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()

	addr, err := locspec.Resolve(locStr, d.syms)
	if err != nil {
		return nil, err
	}

	var p proc.Process
	if d.target != nil {
		p = d.target
	}
	bp, err := d.breakpoints.Set(p, addr)
	if err != nil {
		return nil, err
	}
	bp.FunctionName, _ = d.syms.FunctionAt(addr)
	bp.File, bp.Line, _ = d.syms.LineAt(addr)
	d.log.Infof("created breakpoint: %s", bp)
	return api.ConvertBreakpoint(bp), nil
}

// ClearBreakpoint deletes the breakpoint with the given ID. If the target
// is stopped on it, the instruction pointer is moved back so that the
// original instruction executes on the next continue.
func (d *Debugger) ClearBreakpoint(id int) (*api.Breakpoint, error) {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()

	var p proc.Process
	if d.target != nil {
		p = d.target
	}
	if cur := d.currentBreakpoint(); cur != nil && cur.ID == id {
		if err := d.rewind(cur); err != nil {
			return nil, err
		}
		d.currentBp = nil
		d.state = api.StoppedOther
		d.lastStop = proc.Stopped{Signal: sys.SIGTRAP, PC: cur.Addr}
	}
	bp, err := d.breakpoints.Clear(p, id)
	if err != nil {
		return nil, err
	}
	d.log.Infof("cleared breakpoint: %s", bp)
	return api.ConvertBreakpoint(bp), nil
}

// Breakpoints returns the list of current breakpoints, sorted by ID.
func (d *Debugger) Breakpoints() []*api.Breakpoint {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()
	return api.ConvertBreakpoints(d.breakpoints.List())
}

// Stacktrace returns the frames of the stopped target, innermost first.
// depth <= 0 means the configured maximum. If unwinding fails part way the
// frames collected so far are returned with the error.
func (d *Debugger) Stacktrace(depth int) ([]api.Stackframe, error) {
	d.processMutex.Lock()
	defer d.processMutex.Unlock()

	if d.target == nil {
		return nil, proc.ErrNoProcess
	}
	if !d.state.Stopped() {
		return nil, proc.ErrNotStopped
	}
	if depth <= 0 {
		depth = d.config.MaxStackDepth
	}
	frames, err := proc.Stacktrace(d.target, d.syms, d.config.EntryFunction, depth)
	if len(frames) > 0 && d.currentBp != nil {
		// report the breakpoint address rather than the one after the trap
		frames[0].PC = d.currentBp.Addr
	}
	if err != nil {
		err = fmt.Errorf("stack trace incomplete: %v", err)
	}
	return api.ConvertStacktrace(frames), err
}

// setRunning records the pid of the process being resumed, zero once it
// stopped.
func (d *Debugger) setRunning(pid int) {
	d.runningMutex.Lock()
	d.running = pid
	d.runningMutex.Unlock()
}

func (d *Debugger) runningPid() int {
	d.runningMutex.Lock()
	defer d.runningMutex.Unlock()
	return d.running
}
