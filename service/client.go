package service

import (
	"github.com/go-deet/deet/service/api"
)

// Client represents a debugger service client. All client methods are
// synchronous.
type Client interface {
	// Returns the pid of the process we are debugging, zero if there is none.
	ProcessPid() int

	// Detach detaches the debugger, optionally killing the process.
	Detach(killProcess bool) error

	// Run starts the program, killing the current process if any. Empty
	// args reuse the arguments of the previous run.
	Run(args []string) (*api.DebuggerState, []api.DiscardedBreakpoint, error)

	// State returns the current debugger state.
	State() *api.DebuggerState

	// Continue resumes process execution until the next stop.
	Continue() (*api.DebuggerState, error)

	// CreateBreakpoint creates a new breakpoint at the given location.
	CreateBreakpoint(loc string) (*api.Breakpoint, error)
	// ClearBreakpoint deletes a breakpoint by ID.
	ClearBreakpoint(id int) (*api.Breakpoint, error)
	// Breakpoints gets all breakpoints.
	Breakpoints() []*api.Breakpoint

	// Stacktrace returns stackframes of the stopped process, innermost
	// first. depth <= 0 means the configured maximum.
	Stacktrace(depth int) ([]api.Stackframe, error)
}
