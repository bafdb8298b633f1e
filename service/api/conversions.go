package api

import (
	"github.com/go-deet/deet/pkg/proc"
)

// ConvertBreakpoint converts from a proc.Breakpoint to
// an api.Breakpoint.
func ConvertBreakpoint(bp *proc.Breakpoint) *Breakpoint {
	return &Breakpoint{
		ID:           bp.ID,
		Addr:         bp.Addr,
		File:         bp.File,
		Line:         bp.Line,
		FunctionName: bp.FunctionName,
		Installed:    bp.Installed(),
	}
}

// ConvertBreakpoints converts a slice of proc.Breakpoint to a slice of
// api.Breakpoint.
func ConvertBreakpoints(bps []*proc.Breakpoint) []*Breakpoint {
	r := make([]*Breakpoint, 0, len(bps))
	for _, bp := range bps {
		r = append(r, ConvertBreakpoint(bp))
	}
	return r
}

// ConvertStackframe converts a proc.Stackframe to an api.Stackframe.
func ConvertStackframe(frame proc.Stackframe) Stackframe {
	return Stackframe{
		Location: Location{
			PC:       frame.PC,
			File:     frame.File,
			Line:     frame.Line,
			Function: frame.Function,
		},
		FrameBase: frame.BP,
	}
}

// ConvertStacktrace converts a list of proc.Stackframe, innermost first.
func ConvertStacktrace(frames []proc.Stackframe) []Stackframe {
	r := make([]Stackframe, len(frames))
	for i := range frames {
		r[i] = ConvertStackframe(frames[i])
	}
	return r
}
