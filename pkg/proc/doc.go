// Package proc is a low-level package that provides methods to manipulate
// the process we are debugging.
//
// proc implements the parts of the debugger that do not depend on the
// tracing backend:
// * the status a traced process can report after running
// * the breakpoint table and the step-over-breakpoint sequence
// * unwinding the stack by walking saved frame pointers
//
// The backend itself lives in proc/native.
package proc
