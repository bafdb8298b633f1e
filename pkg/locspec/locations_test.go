package locspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	protest "github.com/go-deet/deet/pkg/proc/test"
)

func parseLocationSpecNoError(t *testing.T, locstr string) LocationSpec {
	t.Helper()
	spec, err := Parse(locstr)
	if err != nil {
		t.Fatalf("Error parsing %q: %v", locstr, err)
	}
	return spec
}

func TestAddrLocationParsing(t *testing.T) {
	for locstr, addr := range map[string]uint64{
		"*0x401020":   0x401020,
		"*0X401020":   0x401020,
		"*401020":     0x401020,
		"*deadbeef":   0xdeadbeef,
		"*0xDEADBEEF": 0xdeadbeef,
		"*10":         0x10,
	} {
		spec := parseLocationSpecNoError(t, locstr)
		assert.Equal(t, &AddrLocationSpec{Addr: addr}, spec, locstr)
	}
}

func TestLineAndNormalLocationParsing(t *testing.T) {
	assert.Equal(t, &LineLocationSpec{Line: 12}, parseLocationSpecNoError(t, "12"))
	assert.Equal(t, &LineLocationSpec{Line: 12}, parseLocationSpecNoError(t, " 12 "))
	assert.Equal(t, &NormalLocationSpec{Base: "foo", LineOffset: -1}, parseLocationSpecNoError(t, "foo"))
	assert.Equal(t, &NormalLocationSpec{Base: "breaks.c", LineOffset: 12}, parseLocationSpecNoError(t, "breaks.c:12"))
	assert.Equal(t, &NormalLocationSpec{Base: "/src/a:b.c", LineOffset: 3}, parseLocationSpecNoError(t, "/src/a:b.c:3"))
}

func TestMalformedLocations(t *testing.T) {
	for _, locstr := range []string{"", "*", "*0x", "*xyz", "*0x12g", "-3", ":4", "breaks.c:x", "breaks.c:-1"} {
		_, err := Parse(locstr)
		assert.Errorf(t, err, "%q", locstr)
	}
}

func testSymbols() *protest.SimSymbols {
	return &protest.SimSymbols{
		File: "breaks.c",
		Funcs: []protest.SimFunction{
			{Name: "main", Entry: 0x40114f, End: 0x401170, Body: 0x401157},
			{Name: "foo", Entry: 0x401126, End: 0x40114f, Body: 0x401135},
			{Name: "42", Entry: 0x401170, End: 0x401180, Body: 0x401174},
		},
		Lines: map[int]uint64{
			5:  0x401135,
			12: 0x40115e,
		},
	}
}

func TestResolveAddressBypassesLookups(t *testing.T) {
	syms := testSymbols()
	addr, err := Resolve("*0x401020", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401020), addr)

	// no validation happens, the breakpoint table reports bad addresses
	addr, err = Resolve("*0xdeadbeef", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), addr)

	assert.Empty(t, syms.Lookups)
}

func TestResolveLineBeforeFunction(t *testing.T) {
	syms := testSymbols()
	addr, err := Resolve("12", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x40115e), addr)
	assert.Equal(t, []string{"line"}, syms.Lookups)

	syms.Lookups = nil
	addr, err = Resolve("42", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401174), addr)
	assert.Equal(t, []string{"line", "function"}, syms.Lookups)

	syms.Lookups = nil
	_, err = Resolve("99", syms)
	assert.Equal(t, &NotFoundError{LocStr: "99"}, err)
	assert.Equal(t, []string{"line", "function"}, syms.Lookups)
}

func TestResolveFunctionAndFileLine(t *testing.T) {
	syms := testSymbols()
	addr, err := Resolve("foo", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401135), addr)
	assert.Equal(t, []string{"function"}, syms.Lookups)

	addr, err = Resolve("breaks.c:5", syms)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401135), addr)

	_, err = Resolve("other.c:5", syms)
	assert.EqualError(t, err, `location "other.c:5" not found`)

	_, err = Resolve("nosuchfunction", syms)
	assert.EqualError(t, err, `location "nosuchfunction" not found`)
}
