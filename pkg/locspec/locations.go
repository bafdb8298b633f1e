package locspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-deet/deet/pkg/symbols"
)

// LocationSpec is an interface that represents a parsed location spec string.
type LocationSpec interface {
	// Find returns the address the location spec designates.
	Find(syms symbols.Resolver) (uint64, error)
}

// AddrLocationSpec represents an address when used
// as a location spec.
type AddrLocationSpec struct {
	Addr uint64
}

// LineLocationSpec represents a line number in the default file. Since a
// bare number is also a valid function name, a line that can not be
// resolved is looked up as a function.
type LineLocationSpec struct {
	Line int
}

// NormalLocationSpec represents a basic location spec.
// This can be a file:line or a function.
type NormalLocationSpec struct {
	Base       string
	LineOffset int
}

// NotFoundError is returned when a well formed location does not match any
// code in the target.
type NotFoundError struct {
	LocStr string
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("location %q not found", err.LocStr)
}

// Parse will turn locStr into a parsed LocationSpec.
func Parse(locStr string) (LocationSpec, error) {
	rest := strings.TrimSpace(locStr)

	malformed := func(reason string) error {
		//lint:ignore ST1005 backwards compatibility
		return fmt.Errorf("Malformed breakpoint location \"%s\" at %d: %s", locStr, len(locStr)-len(rest), reason)
	}

	if len(rest) <= 0 {
		return nil, malformed("empty string")
	}

	if rest[0] == '*' {
		rest = rest[1:]
		hex := rest
		if strings.HasPrefix(hex, "0x") || strings.HasPrefix(hex, "0X") {
			hex = hex[2:]
		}
		if hex == "" {
			return nil, malformed("missing address")
		}
		addr, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return nil, malformed("address is not a hexadecimal number")
		}
		return &AddrLocationSpec{Addr: addr}, nil
	}

	return parseLocationSpecDefault(locStr, rest)
}

func parseLocationSpecDefault(locStr, rest string) (LocationSpec, error) {
	malformed := func(reason string) error {
		//lint:ignore ST1005 backwards compatibility
		return fmt.Errorf("Malformed breakpoint location \"%s\" at %d: %s", locStr, len(locStr)-len(rest), reason)
	}

	if n, err := strconv.Atoi(rest); err == nil {
		if n < 0 {
			return nil, malformed("line number negative")
		}
		return &LineLocationSpec{Line: n}, nil
	}

	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return &NormalLocationSpec{Base: rest, LineOffset: -1}, nil
	}

	spec := &NormalLocationSpec{Base: rest[:i]}
	if spec.Base == "" {
		return nil, malformed("missing file name")
	}
	rest = rest[i+1:]

	var err error
	spec.LineOffset, err = strconv.Atoi(rest)
	if err != nil || spec.LineOffset < 0 {
		return nil, malformed("line offset negative or not a number")
	}
	return spec, nil
}

// Find returns the address itself: addresses are never looked up.
func (loc *AddrLocationSpec) Find(syms symbols.Resolver) (uint64, error) {
	return loc.Addr, nil
}

// Find returns the address of the line in the default file or, failing
// that, of the function whose name is the line number.
func (loc *LineLocationSpec) Find(syms symbols.Resolver) (uint64, error) {
	if addr, ok := syms.AddressForLine("", loc.Line); ok {
		return addr, nil
	}
	name := strconv.Itoa(loc.Line)
	if addr, ok := syms.AddressForFunction(name); ok {
		return addr, nil
	}
	return 0, &NotFoundError{LocStr: name}
}

// Find returns the address of file:line or of the function named Base.
func (loc *NormalLocationSpec) Find(syms symbols.Resolver) (uint64, error) {
	if loc.LineOffset >= 0 {
		if addr, ok := syms.AddressForLine(loc.Base, loc.LineOffset); ok {
			return addr, nil
		}
		return 0, &NotFoundError{LocStr: fmt.Sprintf("%s:%d", loc.Base, loc.LineOffset)}
	}
	if addr, ok := syms.AddressForFunction(loc.Base); ok {
		return addr, nil
	}
	return 0, &NotFoundError{LocStr: loc.Base}
}

// Resolve parses locStr and returns the address it designates.
func Resolve(locStr string, syms symbols.Resolver) (uint64, error) {
	spec, err := Parse(locStr)
	if err != nil {
		return 0, err
	}
	return spec.Find(syms)
}
