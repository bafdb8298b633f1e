// Package locspec implements code to parse a string into a specific
// location specification and to resolve it to an address.
//
// Location spec examples:
//
// locStr ::= *<address> | <line> | <filename>:<line> | <function>
// * *<address> is a hexadecimal address, with or without a 0x prefix
// * <line> returns a location for a line in the file that defines the entry
// function; if that line has no code, <line> is looked up as a function name
// * <filename> can be the full path of a file or just a suffix
// * <function> is the name of a function; its location is the first
// instruction after the prologue
package locspec
