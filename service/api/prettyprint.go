package api

import (
	"fmt"
)

// Source returns file:line, or the hexadecimal address when the source
// position is not known.
func (loc *Location) Source() string {
	if loc.File == "" {
		return fmt.Sprintf("%#x", loc.PC)
	}
	return fmt.Sprintf("%s:%d", loc.File, loc.Line)
}

func (loc *Location) String() string {
	fn := loc.Function
	if fn == "" {
		fn = "??"
	}
	return fmt.Sprintf("%s (%s)", fn, loc.Source())
}

func (bp *Breakpoint) String() string {
	s := fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
	if bp.FunctionName != "" {
		s += " for " + bp.FunctionName + "()"
	}
	if bp.File != "" {
		s += fmt.Sprintf(" %s:%d", bp.File, bp.Line)
	}
	return s
}
