package native

// wordSize is the unit ptrace(2) reads and writes memory in.
const wordSize = 8

// alignAddrToWord rounds addr down to the start of its word.
func alignAddrToWord(addr uint64) uint64 {
	return addr &^ (wordSize - 1)
}

// spliceByte replaces the byte at offset (little endian, 0 is the lowest
// address) of word with val. It returns the new word and the byte it
// replaced; all other bytes are preserved.
func spliceByte(word, offset uint64, val byte) (uint64, byte) {
	shift := 8 * offset
	orig := byte(word >> shift)
	updated := word&^(0xff<<shift) | uint64(val)<<shift
	return updated, orig
}
