package proc

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Breakpoint represents a software breakpoint. Stores information on the
// break point including the byte of data that originally was stored at that
// address.
type Breakpoint struct {
	// File & line information for printing.
	FunctionName string
	File         string
	Line         int

	ID           int    // Ordinal of the breakpoint, for reporting.
	Addr         uint64 // Address breakpoint is set for.
	OriginalData byte   // The byte the trap replaced, valid only while installed.

	installed bool
}

// Installed returns true if the trap byte is currently written in the
// target's memory and OriginalData holds the byte it replaced.
func (bp *Breakpoint) Installed() bool {
	return bp.installed
}

func (bp *Breakpoint) String() string {
	if bp.File == "" {
		return fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
	}
	return fmt.Sprintf("Breakpoint %d at %#x %s:%d", bp.ID, bp.Addr, bp.File, bp.Line)
}

// BreakpointExistsError is returned when trying to set a breakpoint at
// an address that already has a breakpoint set for it.
type BreakpointExistsError struct {
	File string
	Line int
	Addr uint64
}

func (bpe BreakpointExistsError) Error() string {
	if bpe.File == "" {
		return fmt.Sprintf("Breakpoint exists at %#x", bpe.Addr)
	}
	return fmt.Sprintf("Breakpoint exists at %s:%d at %#x", bpe.File, bpe.Line, bpe.Addr)
}

// NoBreakpointError is returned when a breakpoint ID does not exist.
type NoBreakpointError struct {
	ID int
}

func (nbp NoBreakpointError) Error() string {
	return fmt.Sprintf("no breakpoint with id %d", nbp.ID)
}

// InstallError is returned when the trap of a breakpoint can not be
// written into the target.
type InstallError struct {
	Breakpoint *Breakpoint
	Err        error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("could not set breakpoint %d at %#x: %v", e.Breakpoint.ID, e.Breakpoint.Addr, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// BreakpointMap represents an (address, breakpoint) map. Breakpoints are
// independent of any single process: they survive restarts and are applied
// to whichever process currently exists.
type BreakpointMap struct {
	M map[uint64]*Breakpoint

	breakpointIDCounter int
}

// NewBreakpointMap creates a new BreakpointMap.
func NewBreakpointMap() *BreakpointMap {
	return &BreakpointMap{
		M: make(map[uint64]*Breakpoint),
	}
}

// Request records a breakpoint at addr without touching any process. The
// original byte is captured later, by InstallAll or Set.
func (bpmap *BreakpointMap) Request(addr uint64) (*Breakpoint, error) {
	if bp, ok := bpmap.M[addr]; ok {
		return nil, BreakpointExistsError{bp.File, bp.Line, addr}
	}
	bp := &Breakpoint{ID: bpmap.breakpointIDCounter, Addr: addr}
	bpmap.breakpointIDCounter++
	bpmap.M[addr] = bp
	return bp, nil
}

// Set records a breakpoint at addr and, if p is a live process, installs it
// right away. If the installation fails the breakpoint is forgotten and the
// map is left as it was.
func (bpmap *BreakpointMap) Set(p Process, addr uint64) (*Breakpoint, error) {
	bp, err := bpmap.Request(addr)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Exited() {
		return bp, nil
	}
	if err := bpmap.install(p, bp); err != nil {
		delete(bpmap.M, addr)
		bpmap.breakpointIDCounter--
		return nil, err
	}
	return bp, nil
}

// InstallAll writes the trap byte at the address of every breakpoint and
// captures the bytes it replaced. It must be called on a freshly started
// process, before it is first resumed. Breakpoints that can not be
// installed are left uninstalled, the others are installed regardless.
// Every error in the returned *multierror.Error is an *InstallError.
func (bpmap *BreakpointMap) InstallAll(p Process) error {
	var result *multierror.Error
	for _, bp := range bpmap.List() {
		bp.installed = false
		if err := bpmap.install(p, bp); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (bpmap *BreakpointMap) install(p Process, bp *Breakpoint) error {
	orig, err := p.PatchByte(bp.Addr, TrapByte)
	if err != nil {
		return &InstallError{Breakpoint: bp, Err: err}
	}
	bp.OriginalData = orig
	bp.installed = true
	return nil
}

// Find returns the breakpoint at addr, or nil.
func (bpmap *BreakpointMap) Find(addr uint64) *Breakpoint {
	return bpmap.M[addr]
}

// FindID returns the breakpoint with the given ID, or nil.
func (bpmap *BreakpointMap) FindID(id int) *Breakpoint {
	for _, bp := range bpmap.M {
		if bp.ID == id {
			return bp
		}
	}
	return nil
}

// List returns all breakpoints sorted by ID.
func (bpmap *BreakpointMap) List() []*Breakpoint {
	r := make([]*Breakpoint, 0, len(bpmap.M))
	for _, bp := range bpmap.M {
		r = append(r, bp)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ID < r[j].ID })
	return r
}

// AtStop returns the breakpoint that the process stopped on, if any. The
// trap advances the instruction pointer past itself, so the breakpoint is
// the one at pc minus the trap width.
func (bpmap *BreakpointMap) AtStop(pc uint64) *Breakpoint {
	if pc < TrapWidth {
		return nil
	}
	bp := bpmap.Find(pc - TrapWidth)
	if bp == nil || !bp.installed {
		return nil
	}
	return bp
}

// StepOver moves p past the breakpoint it just hit: the original byte is
// restored, the instruction pointer is rolled back onto it, the original
// instruction is single-stepped and then the trap is written again.
// The returned status is the one of the single step. If the step ends the
// process the trap is not written back.
func (bpmap *BreakpointMap) StepOver(p Process, bp *Breakpoint) (Status, error) {
	if !bp.installed {
		return nil, fmt.Errorf("breakpoint %d is not installed", bp.ID)
	}
	if _, err := p.PatchByte(bp.Addr, bp.OriginalData); err != nil {
		return nil, errors.Wrapf(err, "could not restore original instruction at %#x", bp.Addr)
	}
	bp.installed = false

	regs, err := p.Registers()
	if err != nil {
		return nil, err
	}
	regs.SetPC(bp.Addr)
	if err := p.SetRegisters(regs); err != nil {
		return nil, errors.Wrap(err, "could not rewind instruction pointer")
	}

	st, err := p.SingleStep()
	if err != nil {
		return nil, err
	}
	if !Alive(st) {
		return st, nil
	}

	if _, err := p.PatchByte(bp.Addr, TrapByte); err != nil {
		return nil, errors.Wrapf(err, "could not reinstall breakpoint %d", bp.ID)
	}
	bp.installed = true
	return st, nil
}

// Clear removes the breakpoint with the given ID, restoring the original
// byte if it is installed in p.
func (bpmap *BreakpointMap) Clear(p Process, id int) (*Breakpoint, error) {
	bp := bpmap.FindID(id)
	if bp == nil {
		return nil, NoBreakpointError{ID: id}
	}
	if bp.installed && p != nil && !p.Exited() {
		if _, err := p.PatchByte(bp.Addr, bp.OriginalData); err != nil {
			return nil, errors.Wrapf(err, "could not clear breakpoint %d", id)
		}
	}
	bp.installed = false
	delete(bpmap.M, bp.Addr)
	return bp, nil
}

// Reset marks every breakpoint as not installed. Called when the process
// the breakpoints were installed in is gone.
func (bpmap *BreakpointMap) Reset() {
	for _, bp := range bpmap.M {
		bp.installed = false
	}
}
