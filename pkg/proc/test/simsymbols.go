package test

import (
	"github.com/go-deet/deet/pkg/symbols"
)

// SimFunction is a function known to SimSymbols.
type SimFunction struct {
	Name       string
	Entry, End uint64
	// Body is the first address after the prologue.
	Body uint64
}

// SimSymbols is a table driven symbols.Resolver.
type SimSymbols struct {
	File  string
	Funcs []SimFunction
	// Lines maps line numbers of File to addresses.
	Lines map[int]uint64

	// Lookups records the kind of every address lookup, "line" or
	// "function", in the order they were made.
	Lookups []string
}

var _ symbols.Resolver = (*SimSymbols)(nil)

// AddressForLine implements symbols.Resolver.
func (s *SimSymbols) AddressForLine(file string, line int) (uint64, bool) {
	s.Lookups = append(s.Lookups, "line")
	if file != "" && file != s.File {
		return 0, false
	}
	addr, ok := s.Lines[line]
	return addr, ok
}

// AddressForFunction implements symbols.Resolver.
func (s *SimSymbols) AddressForFunction(name string) (uint64, bool) {
	s.Lookups = append(s.Lookups, "function")
	for _, fn := range s.Funcs {
		if fn.Name == name {
			return fn.Body, true
		}
	}
	return 0, false
}

// FunctionAt implements symbols.Resolver.
func (s *SimSymbols) FunctionAt(addr uint64) (string, bool) {
	for _, fn := range s.Funcs {
		if addr >= fn.Entry && addr < fn.End {
			return fn.Name, true
		}
	}
	return "", false
}

// LineAt implements symbols.Resolver. An address belongs to the line with
// the closest lower or equal address, addresses outside every function
// have no line.
func (s *SimSymbols) LineAt(addr uint64) (string, int, bool) {
	if _, ok := s.FunctionAt(addr); !ok {
		return "", 0, false
	}
	best, bestAddr, found := 0, uint64(0), false
	for line, a := range s.Lines {
		if a <= addr && (!found || a > bestAddr) {
			best, bestAddr, found = line, a, true
		}
	}
	if !found {
		return "", 0, false
	}
	return s.File, best, true
}
